// vfsdemo exercises a vfs store end to end: create directories and files,
// write and read them back, print the tree, and delete a subtree.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/nainya/vfslib/internal/logger"
	"github.com/nainya/vfslib/internal/metrics"
	"github.com/nainya/vfslib/pkg/vfs"
)

var (
	storePath = flag.String("store", "vfsdemo.vfs", "Path to the vfs store file")
	fresh     = flag.Bool("fresh", true, "Remove the store file before running, so the demo always starts empty")
	pretty    = flag.Bool("pretty", true, "Pretty-print log output")
)

func main() {
	flag.Parse()

	logger.InitGlobalLogger(logger.Config{Level: "info", Pretty: *pretty})
	log := logger.GetGlobalLogger()

	if *fresh {
		os.Remove(*storePath)
	}

	log.Info("vfsdemo starting").Str("store", *storePath).Send()

	store, err := vfs.OpenWithMetrics(*storePath, metrics.NewMetrics())
	if err != nil {
		log.Fatal("failed to open store").Err(err).Send()
	}
	defer store.Close()

	if err := run(store); err != nil {
		log.Fatal("demo run failed").Err(err).Send()
	}

	log.Info("vfsdemo shutting down").Send()
}

func run(store *vfs.Vfs) error {
	f1, err := store.Create("file1.txt")
	if err != nil {
		return fmt.Errorf("create file1.txt: %w", err)
	}
	if err := store.CreateDir("first_dir"); err != nil {
		return fmt.Errorf("create first_dir: %w", err)
	}
	if err := store.CreateDir("first_dir/second_dir"); err != nil {
		return fmt.Errorf("create first_dir/second_dir: %w", err)
	}
	f2, err := store.Create("first_dir/file2.txt")
	if err != nil {
		return fmt.Errorf("create first_dir/file2.txt: %w", err)
	}

	for _, name := range []string{
		"first_dir/second_dir/file1.txt",
		"first_dir/second_dir/file2.txt",
		"first_dir/second_dir/file3.txt",
	} {
		if _, err := store.Create(name); err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
	}

	fmt.Println("--- tree before delete ---")
	if err := store.PrintTree(os.Stdout, ""); err != nil {
		return fmt.Errorf("print tree: %w", err)
	}

	if err := store.Delete("first_dir/second_dir"); err != nil {
		return fmt.Errorf("delete first_dir/second_dir: %w", err)
	}

	fmt.Println("\n--- tree after delete ---")
	if err := store.PrintTree(os.Stdout, ""); err != nil {
		return fmt.Errorf("print tree: %w", err)
	}

	if _, err := f1.Write([]byte("We <3 Go")); err != nil {
		return fmt.Errorf("write file1.txt: %w", err)
	}
	if _, err := f2.Write([]byte("Hello World!")); err != nil {
		return fmt.Errorf("write first_dir/file2.txt: %w", err)
	}

	text1, err := readAll(f1)
	if err != nil {
		return fmt.Errorf("read file1.txt: %w", err)
	}
	fmt.Printf("\nfile1.txt: %s\n", text1)

	text2, err := readAll(f2)
	if err != nil {
		return fmt.Errorf("read first_dir/file2.txt: %w", err)
	}
	fmt.Printf("first_dir/file2.txt: %s\n", text2)

	return nil
}

// readAll seeks to the start of f and reads every remaining byte, since
// *vfs.File has no ReadAll helper of its own.
func readAll(f *vfs.File) (string, error) {
	if err := f.Seek(0, vfs.SeekStart); err != nil {
		// A freshly-written, nonempty file always accepts Seek(Start, 0); the
		// only way this fails is an empty file, in which case there is
		// nothing to read.
		return "", nil
	}
	var buf bytes.Buffer
	chunk := make([]byte, 64)
	for {
		n, err := f.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			break
		}
	}
	return buf.String(), nil
}
