//go:build mage

// Package main provides build targets for the paizhu project using Mage.
//
// Usage:
//
//	mage build          Compile paizhu binary to bin/
//	mage test           Run all tests
//	mage testShort      Run tests with -short
//	mage cover          Run tests with a coverage profile in bin/
//	mage lint           Run go vet and golangci-lint
//	mage clean          Remove bin/ and test caches
//	mage install        Install paizhu to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName   = "paizhu"
	binaryDir    = "bin"
	cmdDir       = "./cmd/paizhu"
	coverProfile = "coverage.out"
	versionVar   = "github.com/mesh-intelligence/paizhu/pkg/paizhu.Version"
)

// Build compiles the paizhu binary to bin/. PAIZHU_VERSION, when set, is
// stamped into the binary.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v"}
	if v := os.Getenv("PAIZHU_VERSION"); v != "" {
		args = append(args, "-ldflags", "-X "+versionVar+"="+v)
	}
	args = append(args, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
	return sh.RunV("go", args...)
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// TestShort runs the test suite with -short.
func TestShort() error {
	return sh.RunV("go", "test", "-short", "./...")
}

// Cover runs all tests with a coverage profile and prints the per-function
// summary.
func Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, coverProfile)
	if err := sh.RunV("go", "test", "-coverprofile="+profile, "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func="+profile)
}

// Lint runs go vet, then golangci-lint.
func Lint() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes bin/ and the test cache.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV("go", "clean", "-testcache")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	return sh.Copy(filepath.Join(gopath, "bin", binaryName), filepath.Join(binaryDir, binaryName))
}
