//go:build mage

// Package main provides build targets for catmig using Mage.
//
// Usage:
//
//	mage build       Compile the catmig binary to bin/
//	mage install     Install catmig to GOPATH/bin
//	mage clean       Remove build artifacts
//	mage lint        Run golangci-lint
//	mage test:all    Run every test
//	mage test:unit   Run tests of packages that need no database
//	mage test:race   Run every test with the race detector
//	mage test:cover  Write coverage to bin/cover.out and print the total
//	mage demo        Validate and migrate the sample workspace
//	mage stats       Print Go line counts per tree as JSON
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "catmig"
	binaryDir  = "bin"
	cmdDir     = "./cmd/catmig"
)

// Build compiles the catmig binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Demo builds catmig and runs it against the sample workspace in a scratch
// data directory.
func Demo() error {
	mg.Deps(Build)
	bin := filepath.Join(binaryDir, binaryName)
	scratch, err := os.MkdirTemp("", "catmig-demo-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)

	global := []string{"--config-dir", filepath.Join(scratch, "config"), "--data-dir", filepath.Join(scratch, "data")}
	ws := "internal/workspace/testdata/company.yaml"
	for _, args := range [][]string{
		{"init"},
		{"validate", "-f", ws},
		{"delta", "-f", ws, "-m", "G", "-i", "Acme", "--print"},
		{"delta", "-f", ws, "-m", "G", "-i", "Acme", "--engine", "sqlite"},
		{"plan", "sql", "-f", ws, "-m", "G"},
	} {
		if err := sh.RunV(bin, append(global, args...)...); err != nil {
			return err
		}
	}
	return nil
}
