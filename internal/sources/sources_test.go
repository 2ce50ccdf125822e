package sources

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/utils"
)

const itemsJSON = `[{"title": "Go Developer", "companyName": "Acme"}, {"title": "SRE", "companyName": "Beta"}]`

func newTestClient(t *testing.T, handler http.HandlerFunc) *ApifyClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewApifyClient(zap.NewNop(), "secret", utils.RetryPolicy{Attempts: 3})
	client.APIURL = server.URL
	return client
}

func TestRunActorSendsRequest(t *testing.T) {
	var gotInput map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/v2/acts/apimaestro~linkedin-jobs-scraper-api/run-sync-get-dataset-items" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotInput); err != nil {
			t.Errorf("decode input: %v", err)
		}
		_, _ = w.Write([]byte(itemsJSON))
	})

	items, err := NewLinkedIn(client, "").Search(context.Background(), Query{Keywords: "Go Developer remote", Location: "Berlin", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[0]["title"] != "Go Developer" {
		t.Fatalf("unexpected items %+v", items)
	}
	if gotInput["keywords"] != "Go Developer remote" || gotInput["limit"] != float64(5) || gotInput["sort"] != "relevant" {
		t.Fatalf("unexpected actor input %+v", gotInput)
	}
}

func TestRunActorDecodesCompressedBodies(t *testing.T) {
	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write([]byte(itemsJSON))
	_ = gw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write([]byte(itemsJSON))
	_ = bw.Close()

	cases := map[string][]byte{
		"gzip": gz.Bytes(),
		"br":   br.Bytes(),
	}

	for encoding, body := range cases {
		t.Run(encoding, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Encoding", encoding)
				_, _ = w.Write(body)
			})
			// Keep the transport from negotiating gzip on its own.
			client.HTTPClient.Transport = &http.Transport{DisableCompression: true}

			items, err := client.RunActor(context.Background(), "actor", nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(items) != 2 {
				t.Fatalf("expected 2 items, got %d", len(items))
			}
		})
	}
}

func TestRunActorRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(itemsJSON))
	})

	items, err := client.RunActor(context.Background(), "actor", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || calls.Load() != 3 {
		t.Fatalf("expected success on third call, got %d items after %d calls", len(items), calls.Load())
	}
}

func TestRunActorDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	})

	_, err := client.RunActor(context.Background(), "actor", nil)
	if !errors.Is(err, utils.ErrNotRetryable) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestIndeedInput(t *testing.T) {
	runner := &recordingRunner{}
	if _, err := NewIndeed(runner, "").Search(context.Background(), Query{Keywords: "SRE", Location: "Austin", Limit: 7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if runner.actor != DefaultIndeedActor {
		t.Fatalf("unexpected actor %s", runner.actor)
	}
	input := runner.input.(map[string]any)
	if input["position"] != "SRE" || input["maxItems"] != 7 || input["country"] != "US" {
		t.Fatalf("unexpected input %+v", input)
	}
}

type recordingRunner struct {
	actor string
	input any
}

func (r *recordingRunner) RunActor(_ context.Context, actorID string, input any) ([]jobs.Raw, error) {
	r.actor = actorID
	r.input = input
	return nil, nil
}

type stubSource struct {
	name jobs.Source
	raws []jobs.Raw
	err  error
}

func (s stubSource) Name() jobs.Source { return s.name }

func (s stubSource) Search(context.Context, Query) ([]jobs.Raw, error) {
	return s.raws, s.err
}

func TestSearchAllIsolatesFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	batches := SearchAll(context.Background(), []Source{
		stubSource{name: jobs.SourceLinkedIn, err: errors.New("quota exceeded")},
		stubSource{name: jobs.SourceIndeed, raws: []jobs.Raw{{"title": "a"}}},
	}, Query{}, zap.New(core))

	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if !errors.Is(batches[0].Err, ErrSourceUnavailable) || batches[0].Source != jobs.SourceLinkedIn {
		t.Fatalf("expected linkedin failure, got %+v", batches[0])
	}
	if batches[1].Err != nil || len(batches[1].Raws) != 1 {
		t.Fatalf("expected indeed results, got %+v", batches[1])
	}

	entries := logs.FilterMessage("job source failed").All()
	if len(entries) != 1 || entries[0].ContextMap()["source"] != "LinkedIn" {
		t.Fatalf("expected a single warning for linkedin, got %+v", entries)
	}
}

func TestSearchAllWarnsOnEmptySource(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)

	batches := SearchAll(context.Background(), []Source{
		stubSource{name: jobs.SourceIndeed},
	}, Query{}, zap.New(core))

	if batches[0].Err != nil || len(batches[0].Raws) != 0 {
		t.Fatalf("expected an empty batch without error, got %+v", batches[0])
	}
	entries := logs.FilterMessage("job source returned no jobs").All()
	if len(entries) != 1 || entries[0].ContextMap()["source"] != "Indeed" {
		t.Fatalf("expected a single warning for indeed, got %+v", entries)
	}
}
