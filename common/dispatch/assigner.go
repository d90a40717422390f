package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// ManifestFetcher retrieves the raw manifest content behind a URL.
type ManifestFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Assignment maps a worker identity to its ordered chunk sequence.
type Assignment map[string][]string

// ChunkCount returns the total number of chunks across all workers.
func (a Assignment) ChunkCount() int {
	total := 0
	for _, chunks := range a {
		total += len(chunks)
	}
	return total
}

// Assign fetches the dataset manifest and partitions its chunk locators
// across the given workers, round-robin by position: chunk i goes to
// workers[i mod len(workers)], preserving relative order within a worker.
// The partition is a pure function of the manifest content and worker list.
//
// The manifest is fetched once; a transient fetch failure surfaces as
// ErrManifestUnreachable and retrying is the caller's decision.
func Assign(ctx context.Context, fetcher ManifestFetcher, manifestURL string, workers []string) (Assignment, error) {
	if len(workers) == 0 {
		return nil, fmt.Errorf("no workers to assign chunks to: %w", ErrManifestEmpty)
	}

	log.Debug().Str("manifest", manifestURL).Msg("Fetching dataset manifest")

	content, err := fetcher.Fetch(ctx, manifestURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestUnreachable, err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: manifest body is empty", ErrManifestUnreachable)
	}

	chunks := parseManifest(string(content))
	if len(chunks) == 0 {
		return nil, ErrManifestEmpty
	}

	log.Debug().Int("chunks", len(chunks)).Int("workers", len(workers)).Msg("Partitioning dataset chunks")

	assignment := make(Assignment, len(workers))
	for _, worker := range workers {
		assignment[worker] = []string{}
	}
	for i, chunk := range chunks {
		worker := workers[i%len(workers)]
		assignment[worker] = append(assignment[worker], chunk)
	}
	return assignment, nil
}

// parseManifest splits the manifest body on literal commas. Chunk locators
// must not themselves contain a comma; there is no escaping.
func parseManifest(body string) []string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil
	}

	parts := strings.Split(trimmed, ",")
	chunks := make([]string, 0, len(parts))
	for _, part := range parts {
		if locator := strings.TrimSpace(part); locator != "" {
			chunks = append(chunks, locator)
		}
	}
	return chunks
}
