package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// fakeFetcher serves manifest content from memory.
type fakeFetcher struct {
	content []byte
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.content, f.err
}

func TestAssignRoundRobin(t *testing.T) {
	// 7 chunks over 3 workers: positions {0,3,6}, {1,4}, {2,5}.
	fetcher := &fakeFetcher{content: []byte("c0,c1,c2,c3,c4,c5,c6")}
	workers := []string{"w0", "w1", "w2"}

	assignment, err := Assign(context.Background(), fetcher, "http://manifest", workers)
	if err != nil {
		t.Fatal(err)
	}

	expected := Assignment{
		"w0": {"c0", "c3", "c6"},
		"w1": {"c1", "c4"},
		"w2": {"c2", "c5"},
	}
	if !reflect.DeepEqual(assignment, expected) {
		t.Errorf("Expected %v, got %v", expected, assignment)
	}
}

func TestAssignEndToEnd(t *testing.T) {
	fetcher := &fakeFetcher{content: []byte("a,b,c,d,e")}

	assignment, err := Assign(context.Background(), fetcher, "http://manifest", []string{"w1", "w2"})
	if err != nil {
		t.Fatal(err)
	}

	expected := Assignment{
		"w1": {"a", "c", "e"},
		"w2": {"b", "d"},
	}
	if !reflect.DeepEqual(assignment, expected) {
		t.Errorf("Expected %v, got %v", expected, assignment)
	}
}

func TestAssignPartitionProperty(t *testing.T) {
	// Every chunk lands on exactly one worker, for varying sizes.
	for n := 1; n <= 12; n++ {
		for k := 1; k <= n; k++ {
			t.Run(fmt.Sprintf("n=%d k=%d", n, k), func(t *testing.T) {
				chunks := make([]string, n)
				for i := range chunks {
					chunks[i] = fmt.Sprintf("chunk-%d", i)
				}
				workers := make([]string, k)
				for i := range workers {
					workers[i] = fmt.Sprintf("worker-%d", i)
				}

				fetcher := &fakeFetcher{content: []byte(strings.Join(chunks, ","))}
				assignment, err := Assign(context.Background(), fetcher, "http://manifest", workers)
				if err != nil {
					t.Fatal(err)
				}

				if got := assignment.ChunkCount(); got != n {
					t.Errorf("Expected %d chunks in total, got %d", n, got)
				}

				seen := make(map[string]int)
				for _, seq := range assignment {
					for _, chunk := range seq {
						seen[chunk]++
					}
				}
				for _, chunk := range chunks {
					if seen[chunk] != 1 {
						t.Errorf("Chunk %s assigned %d times", chunk, seen[chunk])
					}
				}
			})
		}
	}
}

func TestAssignDeterministic(t *testing.T) {
	fetcher := &fakeFetcher{content: []byte("a,b,c,d,e,f,g")}
	workers := []string{"w1", "w2", "w3"}

	first, err := Assign(context.Background(), fetcher, "http://manifest", workers)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		again, err := Assign(context.Background(), fetcher, "http://manifest", workers)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Assignment not deterministic: %v vs %v", first, again)
		}
	}
}

func TestAssignFailures(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *fakeFetcher
		workers []string
		wantErr error
	}{
		{"fetch error", &fakeFetcher{err: errors.New("connection refused")}, []string{"w1"}, ErrManifestUnreachable},
		{"empty body", &fakeFetcher{content: []byte{}}, []string{"w1"}, ErrManifestUnreachable},
		{"whitespace manifest", &fakeFetcher{content: []byte("   \n\t ")}, []string{"w1"}, ErrManifestEmpty},
		{"only delimiters", &fakeFetcher{content: []byte(",,,")}, []string{"w1"}, ErrManifestEmpty},
		{"no workers", &fakeFetcher{content: []byte("a,b")}, nil, ErrManifestEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assign(context.Background(), tt.fetcher, "http://manifest", tt.workers)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseManifestTrimsLocators(t *testing.T) {
	chunks := parseManifest(" a , b ,c\n")
	expected := []string{"a", "b", "c"}
	if !reflect.DeepEqual(chunks, expected) {
		t.Errorf("Expected %v, got %v", expected, chunks)
	}
}
