// Package inspection implements the record forms: saving a log together
// with its uploaded files, editing it, and deleting it with every file it
// references.
package inspection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mesh-intelligence/paizhu/internal/attachments"
	"github.com/mesh-intelligence/paizhu/internal/fsutil"
	"github.com/mesh-intelligence/paizhu/pkg/types"
)

// sectionKeys names the top-level fields of each kind that hold attachment
// slots.
var sectionKeys = map[types.Kind][]string{
	types.KindDaily:     {"attachments", "monitor_check"},
	types.KindWeekly:    {"hospital_check", "injury_check", "talk_records", "mailbox", "contraband"},
	types.KindMonthly:   {"punishment"},
	types.KindImmediate: {"attachment_ids"},
}

// Service ties the record store to the attachment directory.
type Service struct {
	Store  types.Store
	Files  *attachments.Manager
	Logger *slog.Logger
}

// NewService returns a service over store and files.
func NewService(store types.Store, files *attachments.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Store: store, Files: files, Logger: logger.With("component", "inspection")}
}

func (s *Service) table(kind types.Kind) (types.Table, error) {
	return s.Store.GetTable(kind)
}

// ExistingForDate returns the record already filed for date, or nil. Forms
// call it to warn before a second record for the same day is saved.
func (s *Service) ExistingForDate(ctx context.Context, kind types.Kind, date string) (types.Record, error) {
	tbl, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	return tbl.GetByDate(ctx, date)
}

type savedSlot struct {
	slot  string
	metas []*attachments.Meta
}

// Submit saves the files of every upload slot, creates the record and one
// attachment row per saved file, then stores the attachment row ids in the
// record. uploads is keyed by slot name.
func (s *Service) Submit(ctx context.Context, rec types.Record, uploads map[string][]attachments.SourceFile) (int64, error) {
	kind := rec.Kind()
	if !kind.Valid() || kind == types.KindAttachment {
		return 0, fmt.Errorf("%w: cannot submit %q records", types.ErrInvalidData, kind)
	}
	tbl, err := s.table(kind)
	if err != nil {
		return 0, err
	}
	if err := rec.Normalize(); err != nil {
		return 0, err
	}

	holder, _ := rec.(types.AttachmentHolder)
	names := make([]string, 0, len(uploads))
	for name, files := range uploads {
		if len(files) == 0 {
			continue
		}
		if holder == nil {
			return 0, fmt.Errorf("%w: %s records take no attachments", types.ErrInvalidData, kind)
		}
		if _, ok := types.FindSlot(holder, name); !ok {
			return 0, fmt.Errorf("%w: unknown attachment slot %q", types.ErrInvalidData, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var saved []savedSlot
	if len(names) > 0 && s.Files == nil {
		return 0, fmt.Errorf("%w: no attachment directory configured", types.ErrInvalidData)
	}
	for _, name := range names {
		slot, _ := types.FindSlot(holder, name)
		metas := s.Files.SaveMany(ctx, uploads[name], slot.Category, fileDate(rec))
		if slot.Refs != nil {
			for _, m := range metas {
				*slot.Refs = append(*slot.Refs, m.Ref())
			}
		}
		saved = append(saved, savedSlot{slot: name, metas: metas})
	}

	id, err := tbl.Create(ctx, rec)
	if err != nil {
		s.discard(saved)
		return 0, err
	}
	log := s.Logger.With("table", kind, "id", id)
	if len(saved) == 0 {
		log.Info("record created")
		return id, nil
	}

	files, err := s.table(types.KindAttachment)
	if err != nil {
		return id, err
	}
	for _, ss := range saved {
		slot, _ := types.FindSlot(holder, ss.slot)
		for _, m := range ss.metas {
			row := m.Attachment()
			row.SetRelated(kind.LogType(), id)
			attID, err := files.Create(ctx, row)
			if err != nil {
				return id, fmt.Errorf("recording attachment %s: %w", m.StoredName, err)
			}
			linkRef(slot, m, attID)
		}
	}

	patch, err := types.SectionPatch(rec, sectionKeys[kind]...)
	if err != nil {
		return id, err
	}
	if err := tbl.Update(ctx, id, patch); err != nil {
		return id, fmt.Errorf("storing attachment ids: %w", err)
	}
	log.Info("record created", "files", countMetas(saved))
	return id, nil
}

// linkRef replaces the temporary id of the ref for m with the row id, or
// appends the row id to an id list.
func linkRef(slot types.AttachmentSlot, m *attachments.Meta, attID int64) {
	if slot.IDs != nil {
		*slot.IDs = append(*slot.IDs, attID)
		return
	}
	if slot.Refs == nil {
		return
	}
	refs := *slot.Refs
	for i := range refs {
		if refs[i].FileName == m.StoredName && refs[i].ID == m.TempID {
			refs[i].ID = attID
			return
		}
	}
}

// fileDate is the date stored file names are tagged with. Monthly records
// have no day, so their files use the upload day.
func fileDate(rec types.Record) string {
	if rec.Kind() == types.KindMonthly {
		return ""
	}
	return rec.DateKey()
}

func (s *Service) discard(saved []savedSlot) {
	for _, ss := range saved {
		for _, m := range ss.metas {
			if err := fsutil.RemoveIfExists(m.StoredPath); err != nil {
				s.Logger.Warn("leaving orphan file", "path", m.StoredPath, "error", err)
			}
		}
	}
}

func countMetas(saved []savedSlot) int {
	n := 0
	for _, ss := range saved {
		n += len(ss.metas)
	}
	return n
}

// Update merges patch into a stored record.
func (s *Service) Update(ctx context.Context, kind types.Kind, id int64, patch types.Patch) error {
	tbl, err := s.table(kind)
	if err != nil {
		return err
	}
	if err := tbl.Update(ctx, id, patch); err != nil {
		return err
	}
	s.Logger.Info("record updated", "table", kind, "id", id, "fields", len(patch))
	return nil
}

// Delete removes a record with every file it references and the
// attachment rows describing them. Files another attachment row still
// points to are kept. File errors are logged and skipped.
func (s *Service) Delete(ctx context.Context, kind types.Kind, id int64) error {
	tbl, err := s.table(kind)
	if err != nil {
		return err
	}
	rec, err := tbl.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("deleting %s %d: %w", kind, id, types.ErrNotFound)
	}
	log := s.Logger.With("table", kind, "id", id)

	if a, ok := rec.(*types.Attachment); ok {
		shared, err := s.pathsHeldElsewhere(ctx, map[int64]bool{id: true})
		if err != nil {
			return err
		}
		if !shared[a.FilePath] {
			s.deleteFile(a.FilePath)
		}
		if err := tbl.Delete(ctx, id); err != nil {
			return err
		}
		log.Info("attachment deleted")
		return nil
	}

	rows, err := s.relatedRows(ctx, rec)
	if err != nil {
		return err
	}
	paths := make(map[string]bool)
	if holder, ok := rec.(types.AttachmentHolder); ok {
		for _, ref := range types.AllRefs(holder) {
			paths[ref.FilePath] = true
		}
	}
	owned := make(map[int64]bool, len(rows))
	for _, a := range rows {
		paths[a.FilePath] = true
		owned[a.ID] = true
	}
	shared, err := s.pathsHeldElsewhere(ctx, owned)
	if err != nil {
		return err
	}
	for p := range paths {
		if shared[p] {
			log.Warn("keeping attachment file still referenced by another row", "path", p)
			continue
		}
		s.deleteFile(p)
	}

	if len(rows) > 0 {
		files, err := s.table(types.KindAttachment)
		if err != nil {
			return err
		}
		for _, a := range rows {
			if err := files.Delete(ctx, a.ID); err != nil && !errors.Is(err, types.ErrNotFound) {
				return fmt.Errorf("deleting attachment %d: %w", a.ID, err)
			}
		}
	}

	if err := tbl.Delete(ctx, id); err != nil {
		return err
	}
	log.Info("record deleted", "files", len(paths), "attachment_rows", len(rows))
	return nil
}

// relatedRows finds the attachment rows of a log through the back
// reference, the ids held in its slots and the ids of its embedded refs.
func (s *Service) relatedRows(ctx context.Context, rec types.Record) ([]*types.Attachment, error) {
	h := rec.Head()
	found, err := s.Store.AttachmentsForLog(ctx, rec.Kind().LogType(), h.ID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(found))
	for _, a := range found {
		seen[a.ID] = true
	}

	var ids []int64
	if holder, ok := rec.(types.AttachmentHolder); ok {
		for _, slot := range holder.AttachmentSlots() {
			if slot.IDs != nil {
				ids = append(ids, (*slot.IDs)...)
			}
		}
		for _, ref := range types.AllRefs(holder) {
			ids = append(ids, ref.ID)
		}
	}
	if len(ids) == 0 {
		return found, nil
	}

	files, err := s.table(types.KindAttachment)
	if err != nil {
		return nil, err
	}
	for _, attID := range ids {
		if attID <= 0 || seen[attID] {
			continue
		}
		seen[attID] = true
		r, err := files.Get(ctx, attID)
		if err != nil {
			return nil, err
		}
		a, ok := r.(*types.Attachment)
		if !ok || !ownedBy(a, rec) {
			continue
		}
		found = append(found, a)
	}
	return found, nil
}

// pathsHeldElsewhere returns the file paths of every attachment row not in
// skip.
func (s *Service) pathsHeldElsewhere(ctx context.Context, skip map[int64]bool) (map[string]bool, error) {
	files, err := s.table(types.KindAttachment)
	if err != nil {
		return nil, err
	}
	const page = 200
	held := make(map[string]bool)
	for offset := 0; ; offset += page {
		recs, err := files.List(ctx, page, offset)
		if err != nil {
			return nil, fmt.Errorf("listing attachments: %w", err)
		}
		for _, r := range recs {
			if a, ok := r.(*types.Attachment); ok && !skip[a.ID] && a.FilePath != "" {
				held[a.FilePath] = true
			}
		}
		if len(recs) < page {
			return held, nil
		}
	}
}

// ownedBy guards against an id that was reused by an unrelated row.
func ownedBy(a *types.Attachment, rec types.Record) bool {
	if a.RelatedLogID == nil {
		return true
	}
	return a.RelatedLogType == rec.Kind().LogType() && *a.RelatedLogID == rec.Head().ID
}

func (s *Service) deleteFile(path string) {
	if path == "" {
		return
	}
	if err := fsutil.RemoveIfExists(path); err != nil {
		s.Logger.Warn("could not delete attachment file", "path", path, "error", err)
	}
}
