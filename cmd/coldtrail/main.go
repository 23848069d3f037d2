// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Command coldtrail is a thin driver wiring config, keystore, store, and
// history together for manual smoke testing. It carries no business logic
// of its own and is not where the module's tests live.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/coldtrail/coldtrail/config"
	"github.com/coldtrail/coldtrail/history"
	"github.com/coldtrail/coldtrail/keystore"
	"github.com/coldtrail/coldtrail/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "snapshot":
		err = runSnapshot(os.Args[2:])
	case "check":
		err = runCheck(os.Args[2:])
	case "ls":
		err = runLs(os.Args[2:])
	case "restore":
		err = runRestore(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "coldtrail: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: coldtrail <snapshot|check|ls|restore> [flags]")
}

// envPrompter reads a password from COLDTRAIL_PASSWORD if set, falling back
// to an interactive stdin prompt. It's deliberately unhardened (no echo
// suppression) since this command exists for smoke testing, not operator
// use.
type envPrompter struct{}

func (envPrompter) PromptPassword(message string) (string, error) {
	if p := os.Getenv("COLDTRAIL_PASSWORD"); p != "" {
		return p, nil
	}
	fmt.Fprint(os.Stderr, message+": ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

type engineSet struct {
	cfg config.Config
	ks  *keystore.Keystore
}

func setupEngineSet(keystorePath string) (*engineSet, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var ks *keystore.Keystore
	if _, statErr := os.Stat(keystorePath); os.IsNotExist(statErr) {
		ks, err = keystore.Create(keystorePath, envPrompter{})
	} else {
		ks, err = keystore.Open(keystorePath, envPrompter{})
	}
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}
	return &engineSet{cfg: cfg, ks: ks}, nil
}

func (es *engineSet) engineFor(targetName string) (*history.Engine, error) {
	var target *config.Target
	for i := range es.cfg.Targets {
		if es.cfg.Targets[i].Name == targetName {
			target = &es.cfg.Targets[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("unknown target %q", targetName)
	}

	root := strings.TrimPrefix(target.URL, "file://")
	raw, err := store.NewFilesystemBackend(root, es.cfg.NodeName)
	if err != nil {
		return nil, fmt.Errorf("open backend for %s: %w", targetName, err)
	}
	backend, err := store.Connect(raw, es.ks, target.Name, es.cfg.NodeName)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", targetName, err)
	}
	return history.New(backend), nil
}

func runSnapshot(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	target := fs.String("target", "", "target name from config")
	keystorePath := fs.String("keystore", "", "keystore directory")
	createTime := fs.Int64("time", 0, "snapshot create time (unix seconds)")
	fs.Parse(args)
	paths := fs.Args()
	if *target == "" || *keystorePath == "" || len(paths) == 0 {
		return fmt.Errorf("snapshot requires -target, -keystore, and at least one path")
	}

	es, err := setupEngineSet(*keystorePath)
	if err != nil {
		return err
	}
	eng, err := es.engineFor(*target)
	if err != nil {
		return err
	}
	tag, err := eng.Commit(paths, uint64(*createTime))
	if err != nil {
		return err
	}
	fmt.Printf("snapshot %x\n", tag)
	return nil
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	target := fs.String("target", "", "target name from config")
	keystorePath := fs.String("keystore", "", "keystore directory")
	mode := fs.String("mode", "normal", "quick|normal|slow|exhaustive")
	fs.Parse(args)
	if *target == "" || *keystorePath == "" {
		return fmt.Errorf("check requires -target and -keystore")
	}

	m, err := parseMode(*mode)
	if err != nil {
		return err
	}

	es, err := setupEngineSet(*keystorePath)
	if err != nil {
		return err
	}
	eng, err := es.engineFor(*target)
	if err != nil {
		return err
	}
	ok, err := eng.Check(m)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("FAIL")
		os.Exit(1)
	}
	fmt.Println("OK")
	return nil
}

func runLs(args []string) error {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	target := fs.String("target", "", "target name from config")
	keystorePath := fs.String("keystore", "", "keystore directory")
	path := fs.String("path", "/", "path to resolve")
	fs.Parse(args)
	if *target == "" || *keystorePath == "" {
		return fmt.Errorf("ls requires -target and -keystore")
	}

	es, err := setupEngineSet(*keystorePath)
	if err != nil {
		return err
	}
	eng, err := es.engineFor(*target)
	if err != nil {
		return err
	}
	obj, found, err := eng.GetPath(*path)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: not found", *path)
	}
	fmt.Printf("%#v\n", obj)
	return nil
}

func runRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	target := fs.String("target", "", "target name from config")
	keystorePath := fs.String("keystore", "", "keystore directory")
	path := fs.String("path", "/", "path to restore")
	dest := fs.String("dest", "", "destination path on the local filesystem")
	overwrite := fs.Bool("overwrite", false, "allow overwriting an existing destination")
	fs.Parse(args)
	if *target == "" || *keystorePath == "" || *dest == "" {
		return fmt.Errorf("restore requires -target, -keystore, and -dest")
	}

	es, err := setupEngineSet(*keystorePath)
	if err != nil {
		return err
	}
	eng, err := es.engineFor(*target)
	if err != nil {
		return err
	}
	obj, found, err := eng.GetPath(*path)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s: not found", *path)
	}
	return eng.Restore(obj, *dest, *overwrite)
}

func parseMode(s string) (history.IntegrityTestMode, error) {
	switch strings.ToLower(s) {
	case "quick":
		return history.Quick, nil
	case "normal":
		return history.Normal, nil
	case "slow":
		return history.Slow, nil
	case "exhaustive":
		return history.Exhaustive, nil
	default:
		if n, err := strconv.Atoi(s); err == nil {
			return history.IntegrityTestMode(n), nil
		}
		return 0, fmt.Errorf("unknown check mode %q", s)
	}
}
