// Package interpro builds InterProScan command lines from job requests. The
// tool itself is opaque to the rest of the system: it consumes a staged
// FASTA file plus options and leaves output files in a directory.
package interpro

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bio-mcp/interprod/internal/executor"
	"github.com/bio-mcp/interprod/internal/jobs"
)

const DefaultFormat = "tsv"

var validFormats = map[string]bool{
	"tsv":  true,
	"xml":  true,
	"json": true,
	"gff3": true,
}

type Scanner struct {
	toolPath string
}

func New(toolPath string) *Scanner {
	return &Scanner{toolPath: toolPath}
}

func (s *Scanner) ValidateRequest(req jobs.Request) error {
	if req.OutputFormat != "" && !validFormats[strings.ToLower(req.OutputFormat)] {
		return fmt.Errorf("%w: output format %q, want one of tsv, xml, json, gff3",
			jobs.ErrInvalidRequest, req.OutputFormat)
	}
	for _, db := range req.Databases {
		if strings.TrimSpace(db) == "" {
			return fmt.Errorf("%w: empty database name", jobs.ErrInvalidRequest)
		}
	}
	return nil
}

// Command assembles the interproscan.sh invocation for one job. Precalculated
// match lookup is disabled so runs stay self-contained.
func (s *Scanner) Command(req jobs.Request, inputPath, outDir string) executor.CommandSpec {
	format := strings.ToLower(req.OutputFormat)
	if format == "" {
		format = DefaultFormat
	}
	args := []string{
		"-i", inputPath,
		"-d", outDir,
		"-f", format,
		"--disable-precalc",
	}
	if req.GoTerms {
		args = append(args, "--goterms")
	}
	if req.Pathways {
		args = append(args, "--pathways")
	}
	if len(req.Databases) > 0 {
		args = append(args, "-appl", strings.Join(req.Databases, ","))
	}
	return executor.CommandSpec{
		Path: s.toolPath,
		Args: args,
		Dir:  filepath.Dir(inputPath),
	}
}

// Outputs lists the files the tool wrote. A successful run must leave at
// least one; the caller enforces that.
func (s *Scanner) Outputs(outDir string) ([]string, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("reading output dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(outDir, e.Name()))
	}
	return files, nil
}
