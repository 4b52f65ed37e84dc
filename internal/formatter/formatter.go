// Package formatter exports clustering results and deployment manifests to files (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radial/internal/models"
	"github.com/desertthunder/radial/internal/shared"
	"github.com/go-resty/resty/v2"
)

// Supported export formats
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists every export format accepted by [WriteExport].
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

// ParseFormat normalizes a user supplied format name. "md" and "text" are accepted as aliases.
func ParseFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatText, "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidArgument, format)
	}
}

// ManifestExtension returns the file extension used for a deployment manifest in format.
func ManifestExtension(format string) string {
	if f, _ := ParseFormat(format); f == FormatText {
		return "txt"
	}
	return "json"
}

// ExportToCSV converts labelled tracks to CSV format with columns: TrackID, Cluster, Name, Artists
//
// Name and Artists are only known for preview tracks and are empty for the rest.
func ExportToCSV(a *models.Artifacts) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"TrackID", "Cluster", "Name", "Artists"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, lt := range a.Labelled {
		meta := a.Display[lt.Label][lt.TrackID]
		record := []string{
			lt.TrackID,
			strconv.Itoa(lt.Label.Ordinal()),
			meta.Name,
			meta.Artists,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts clustering results to Markdown with one section per cluster.
//
// covers maps a cluster to an image file name relative to the document; clusters without one get no image.
func ExportToMarkdown(a *models.Artifacts, title string, covers map[models.ClusterID]string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Tracks**: %s\n", shared.FormatCount(len(a.Labelled))))
	buf.WriteString(fmt.Sprintf("**Clusters**: %d\n\n", len(a.Playlists)))

	for _, id := range a.Playlists.IDs() {
		p := a.Playlists[id]
		buf.WriteString(fmt.Sprintf("## Cluster %d\n\n", id.Ordinal()))
		if cover := covers[id]; cover != "" {
			buf.WriteString(fmt.Sprintf("![Cover](%s)\n\n", cover))
		}
		buf.WriteString(fmt.Sprintf("**Size**: %s tracks (%s%%)\n\n", p.Size, formatPercent(p.ProportionalSize)))

		for i, trackID := range p.DisplayableTracks {
			meta, ok := a.Display[id][trackID]
			if !ok {
				buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, trackID))
				continue
			}
			buf.WriteString(fmt.Sprintf("%d. [%s - %s](%s)\n", i+1, meta.Artists, meta.Name, meta.PlayableURL))
		}
		if rest := p.TrackCount() - len(p.DisplayableTracks); rest > 0 {
			buf.WriteString(fmt.Sprintf("\n...and %s more\n", shared.FormatCount(rest)))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts clustering results to plain text format
func ExportToText(a *models.Artifacts, title string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Clustering: %s\n", title))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(a.Labelled)))

	for _, id := range a.Playlists.IDs() {
		p := a.Playlists[id]
		buf.WriteString(fmt.Sprintf("Cluster %d: %s tracks (%s%%)\n", id.Ordinal(), p.Size, formatPercent(p.ProportionalSize)))
		for _, trackID := range p.DisplayableTracks {
			if meta, ok := a.Display[id][trackID]; ok {
				buf.WriteString(fmt.Sprintf("  %s - %s\n", meta.Artists, meta.Name))
			} else {
				buf.WriteString(fmt.Sprintf("  %s\n", trackID))
			}
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	resp, err := resty.New().SetTimeout(30 * time.Second).R().Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode())
	}

	return resp.Body(), nil
}

// clusterSummary is one cluster in the metadata document.
type clusterSummary struct {
	Cluster          int     `json:"cluster"`
	Size             string  `json:"size"`
	ProportionalSize float64 `json:"proportional_size"`
	CentroidTrack    string  `json:"centroid_track"`
}

// ToMetadataJSON generates a JSON summary of a run (without track lists)
func ToMetadataJSON(a *models.Artifacts, title string) ([]byte, error) {
	summary := struct {
		ClusteringID string           `json:"clustering_id"`
		UserID       string           `json:"user_id"`
		Title        string           `json:"title"`
		Algorithm    string           `json:"algorithm"`
		Tracks       int              `json:"tracks"`
		Clusters     []clusterSummary `json:"clusters"`
	}{
		ClusteringID: a.ClusteringID,
		UserID:       a.UserID,
		Title:        title,
		Algorithm:    a.Algorithm,
		Tracks:       len(a.Labelled),
	}
	for _, id := range a.Playlists.IDs() {
		p := a.Playlists[id]
		summary.Clusters = append(summary.Clusters, clusterSummary{
			Cluster:          id.Ordinal(),
			Size:             p.Size,
			ProportionalSize: p.ProportionalSize,
			CentroidTrack:    p.CentroidTrack,
		})
	}
	return shared.MarshalJSON(summary, true)
}

// ExportOpts configures [WriteExport].
type ExportOpts struct {
	Title          string // Heading used in Markdown, text and metadata output
	Format         string // One of [Formats], defaults to json
	OutputDir      string // Destination directory, created when missing
	DownloadCovers bool   // Markdown only: save each centroid's album cover next to the document
	Logger         *log.Logger
}

// ExportResult contains the paths of files created by [WriteExport]
type ExportResult struct {
	Directory string
	Files     []string
}

// WriteExport writes a run's artifacts to opts.OutputDir in the requested format.
//
// JSON writes the three artifact documents, CSV writes labelled_tracks.csv with a metadata.json summary,
// Markdown writes README.md with optional covers and text writes clusters.txt.
func WriteExport(a *models.Artifacts, opts ExportOpts) (*ExportResult, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: artifacts", shared.ErrMissingArgument)
	}
	format, err := ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("radial_export_%d", time.Now().Unix())
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ExportResult{Directory: opts.OutputDir}
	write := func(name string, data []byte) error {
		path := filepath.Join(opts.OutputDir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		result.Files = append(result.Files, path)
		return nil
	}

	switch format {
	case FormatCSV:
		data, err := ExportToCSV(a)
		if err != nil {
			return nil, fmt.Errorf("failed to generate CSV: %w", err)
		}
		if err := write("labelled_tracks.csv", data); err != nil {
			return nil, err
		}
		meta, err := ToMetadataJSON(a, opts.Title)
		if err != nil {
			return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
		}
		if err := write("metadata.json", meta); err != nil {
			return nil, err
		}

	case FormatMarkdown:
		covers := make(map[models.ClusterID]string)
		if opts.DownloadCovers {
			for _, id := range a.Playlists.IDs() {
				name, err := writeCover(a, id, opts.OutputDir)
				if err != nil {
					opts.Logger.Warn("failed to save cover image", "cluster", id.Ordinal(), "error", err)
					continue
				}
				covers[id] = name
				result.Files = append(result.Files, filepath.Join(opts.OutputDir, name))
			}
		}
		data, err := ExportToMarkdown(a, opts.Title, covers)
		if err != nil {
			return nil, fmt.Errorf("failed to generate Markdown: %w", err)
		}
		if err := write("README.md", data); err != nil {
			return nil, err
		}

	case FormatText:
		data, err := ExportToText(a, opts.Title)
		if err != nil {
			return nil, fmt.Errorf("failed to generate text: %w", err)
		}
		if err := write("clusters.txt", data); err != nil {
			return nil, err
		}

	default:
		docs := []struct {
			name string
			v    any
		}{
			{"clustered_playlists.json", a.Playlists},
			{"displayable_data.json", a.Display},
			{"labelled_tracks.json", a.Labelled},
		}
		for _, doc := range docs {
			data, err := shared.MarshalJSON(doc.v, true)
			if err != nil {
				return nil, fmt.Errorf("JSON marshal failed: %w", err)
			}
			if err := write(doc.name, data); err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}

// writeCover downloads the album cover of a cluster's centroid track and returns its file name.
func writeCover(a *models.Artifacts, id models.ClusterID, dir string) (string, error) {
	p := a.Playlists[id]
	meta, ok := a.Display[id][p.CentroidTrack]
	if !ok || meta.AlbumCoverURL == "" {
		return "", fmt.Errorf("no cover for centroid track %s", p.CentroidTrack)
	}

	data, err := DownloadImage(meta.AlbumCoverURL)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("cover_%d.jpg", id.Ordinal())
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return "", err
	}
	return name, nil
}

// WriteDeployManifest writes a summary of a bulk deployment to path as JSON, or as text when format is txt.
func WriteDeployManifest(result *models.BulkDeployResult, format, path string) error {
	if result == nil {
		return fmt.Errorf("%w: deploy result", shared.ErrMissingArgument)
	}

	var (
		data []byte
		err  error
	)
	if ManifestExtension(format) == "txt" {
		data = deployManifestText(result)
	} else {
		manifest := struct {
			GeneratedAt time.Time `json:"generated_at"`
			*models.BulkDeployResult
		}{time.Now().UTC(), result}
		data, err = shared.MarshalJSON(manifest, true)
		if err != nil {
			return fmt.Errorf("failed to encode manifest: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func deployManifestText(result *models.BulkDeployResult) []byte {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("%s: %d/%d clusters deployed\n\n", result.Title, result.Succeeded, result.Total))
	for _, o := range result.Outcomes {
		if o.Error != "" {
			buf.WriteString(fmt.Sprintf("✗ Cluster %d: %s\n", o.ClusterID.Ordinal(), o.Error))
			continue
		}
		buf.WriteString(fmt.Sprintf("✓ Cluster %d: %s (%d tracks)\n", o.ClusterID.Ordinal(), o.URL, o.TrackCount))
	}
	return buf.Bytes()
}
