package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-severity/internal/cache"
)

// GENCODE FTP URLs
const (
	gencodeBaseURL = "https://ftp.ebi.ac.uk/pub/databases/gencode/Gencode_human/release_46"
	gencodeVersion = "v46"
)

// getGENCODEURLs returns the GTF and FASTA URLs for the given assembly.
func getGENCODEURLs(assembly string) (gtfURL, fastaURL string) {
	if strings.EqualFold(assembly, "GRCh37") {
		gtfURL = fmt.Sprintf("%s/GRCh37_mapping/gencode.%slift37.annotation.gtf.gz", gencodeBaseURL, gencodeVersion)
		fastaURL = fmt.Sprintf("%s/GRCh37_mapping/gencode.%slift37.pc_transcripts.fa.gz", gencodeBaseURL, gencodeVersion)
		return
	}
	gtfURL = fmt.Sprintf("%s/gencode.%s.annotation.gtf.gz", gencodeBaseURL, gencodeVersion)
	fastaURL = fmt.Sprintf("%s/gencode.%s.pc_transcripts.fa.gz", gencodeBaseURL, gencodeVersion)
	return
}

func newDownloadCmd() *cobra.Command {
	var (
		assembly  string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download GENCODE transcript models and canonical transcript lists",
		Long: `Download the GENCODE GTF, protein-coding transcript FASTA and the Genome Nexus
canonical transcript list used to resolve genes to transcripts.`,
		Example: `  vibe-severity download
  vibe-severity download --assembly GRCh37
  vibe-severity download --output /data/gencode`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd.OutOrStdout(), assembly, outputDir)
		},
	}

	cmd.Flags().StringVar(&assembly, "assembly", "GRCh38", "Genome assembly: GRCh37 or GRCh38")
	cmd.Flags().StringVar(&outputDir, "output", "", "Output directory (default: ~/.vibe-severity/)")
	return cmd
}

func runDownload(out io.Writer, assembly, outputDir string) error {
	if outputDir == "" {
		dir, err := dataDir()
		if err != nil {
			return err
		}
		outputDir = dir
	}

	destDir := filepath.Join(outputDir, strings.ToLower(assembly))
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", destDir, err)
	}

	gtfURL, fastaURL := getGENCODEURLs(assembly)

	fmt.Fprintf(out, "Downloading GENCODE %s annotations for %s...\n", gencodeVersion, assembly)
	fmt.Fprintf(out, "Destination: %s\n\n", destDir)

	if err := downloadFile(out, gtfURL, filepath.Join(destDir, filepath.Base(gtfURL))); err != nil {
		return fmt.Errorf("downloading GTF: %w", err)
	}
	if err := downloadFile(out, fastaURL, filepath.Join(destDir, filepath.Base(fastaURL))); err != nil {
		return fmt.Errorf("downloading FASTA: %w", err)
	}

	canonicalFile := filepath.Join(destDir, cache.CanonicalFileName())
	if !fileExists(canonicalFile) {
		fmt.Fprintf(out, "  Downloading %s...\n", cache.CanonicalFileName())
		if err := cache.DownloadCanonicalOverrides(assembly, canonicalFile); err != nil {
			// Non-fatal: genes fall back to GENCODE canonical tags
			fmt.Fprintf(out, "Warning: could not download canonical transcript list: %v\n", err)
		}
	}

	fmt.Fprintf(out, "\nDownload complete!\n")
	return nil
}

// downloadFile downloads a file from URL to the destination path with progress.
func downloadFile(out io.Writer, url, destPath string) error {
	if info, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(out, "  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	fmt.Fprintf(out, "  Downloading %s...\n", filepath.Base(destPath))

	client := &http.Client{
		Timeout: 30 * time.Minute,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	pw := &progressWriter{
		out:       out,
		total:     resp.ContentLength,
		lastPrint: time.Now(),
	}

	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	fmt.Fprintf(out, "    Done: %s\n", formatSize(pw.downloaded))
	return nil
}

// progressWriter reports download progress about once a second.
type progressWriter struct {
	out        io.Writer
	total      int64
	downloaded int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.downloaded += int64(n)

	if time.Since(pw.lastPrint) > time.Second {
		if pw.total > 0 {
			pct := float64(pw.downloaded) / float64(pw.total) * 100
			fmt.Fprintf(pw.out, "\r    Progress: %s / %s (%.1f%%)  ",
				formatSize(pw.downloaded), formatSize(pw.total), pct)
		} else {
			fmt.Fprintf(pw.out, "\r    Progress: %s  ", formatSize(pw.downloaded))
		}
		pw.lastPrint = time.Now()
	}
	return n, nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// gencodeFiles are the transcript model files of one assembly.
type gencodeFiles struct {
	dir       string
	gtf       string
	fasta     string
	canonical string
}

// findGENCODEFiles looks for downloaded GENCODE files of an assembly under
// the data directory.
func findGENCODEFiles(assembly string) (gencodeFiles, bool) {
	root, err := dataDir()
	if err != nil {
		return gencodeFiles{}, false
	}
	files := gencodeFiles{dir: filepath.Join(root, strings.ToLower(assembly))}

	gtfPattern, fastaPattern := "gencode.v*.annotation.gtf.gz", "gencode.v*.pc_transcripts.fa.gz"
	if strings.EqualFold(assembly, "GRCh37") {
		gtfPattern, fastaPattern = "gencode.v*lift37.annotation.gtf.gz", "gencode.v*lift37.pc_transcripts.fa.gz"
	}

	matches, err := filepath.Glob(filepath.Join(files.dir, gtfPattern))
	if err != nil || len(matches) == 0 {
		return gencodeFiles{}, false
	}
	files.gtf = matches[0]

	matches, err = filepath.Glob(filepath.Join(files.dir, fastaPattern))
	if err == nil && len(matches) > 0 {
		files.fasta = matches[0]
	}

	if p := filepath.Join(files.dir, cache.CanonicalFileName()); fileExists(p) {
		files.canonical = p
	}
	return files, true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
