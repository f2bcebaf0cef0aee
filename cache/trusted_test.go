package cache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/auth"
	"github.com/braedonmerlodev/MCP-AI-Sanitizer-sub002/observe"
)

// fakeValidator trusts tokens in its set and counts calls.
type fakeValidator struct {
	mu      sync.Mutex
	trusted map[string]bool
	outage  bool
	calls   int
}

func newFakeValidator(tokens ...string) *fakeValidator {
	v := &fakeValidator{trusted: make(map[string]bool)}
	for _, tok := range tokens {
		v.trusted[tok] = true
	}
	return v
}

func (v *fakeValidator) Validate(_ context.Context, token string) auth.Result {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.outage {
		return auth.Result{Error: auth.ValidationServiceError, StatusCode: 503, Type: auth.ValidationBackendError}
	}
	if v.trusted[token] {
		return auth.Result{Valid: true, StatusCode: 200, Type: auth.ValidationFullBackend}
	}
	return auth.Result{Error: "revoked", StatusCode: 401, Type: auth.ValidationFullBackend}
}

func (v *fakeValidator) revoke(token string) {
	v.mu.Lock()
	delete(v.trusted, token)
	v.mu.Unlock()
}

// countingFetch returns successive payloads and counts calls.
type countingFetch struct {
	calls   int
	payload string
	err     error
}

func (f *countingFetch) fetch(context.Context) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.payload), nil
}

func newTrusted(t *testing.T, v TrustValidator) *TrustedCache {
	t.Helper()
	tc, err := NewTrustedCache(TrustedCacheConfig{Cache: NewResponseCache(DefaultPolicy()), Validator: v})
	if err != nil {
		t.Fatalf("NewTrustedCache() error = %v", err)
	}
	return tc
}

func pdfRequest(token string) Request {
	return Request{
		Method:     "POST",
		Path:       "/api/process-pdf",
		Body:       []byte(`{"document":"report.pdf"}`),
		Token:      token,
		Validation: auth.ValidateFormat(token),
	}
}

func TestNewTrustedCache_RequiresDependencies(t *testing.T) {
	if _, err := NewTrustedCache(TrustedCacheConfig{Validator: newFakeValidator()}); err != ErrNilCache {
		t.Errorf("missing cache error = %v, want %v", err, ErrNilCache)
	}
	if _, err := NewTrustedCache(TrustedCacheConfig{Cache: NewResponseCache(DefaultPolicy())}); err != ErrNilValidator {
		t.Errorf("missing validator error = %v, want %v", err, ErrNilValidator)
	}
}

func TestTrustedCache_MissThenHit(t *testing.T) {
	v := newFakeValidator(tokenA)
	tc := newTrusted(t, v)
	f := &countingFetch{payload: `{"result":"processed"}`}
	ctx := context.Background()

	got, outcome, err := tc.Execute(ctx, pdfRequest(tokenA), f.fetch)
	if err != nil || outcome != observe.CacheMiss || string(got) != f.payload {
		t.Fatalf("first Execute = (%s, %s, %v), want miss", got, outcome, err)
	}

	got, outcome, err = tc.Execute(ctx, pdfRequest(tokenA), f.fetch)
	if err != nil || outcome != observe.CacheHit || string(got) != f.payload {
		t.Fatalf("second Execute = (%s, %s, %v), want hit", got, outcome, err)
	}
	if f.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", f.calls)
	}
	if v.calls != 1 {
		t.Errorf("validator calls = %d, want 1 (hit only)", v.calls)
	}
}

func TestTrustedCache_RevocationFreshness(t *testing.T) {
	v := newFakeValidator(tokenA)
	tc := newTrusted(t, v)
	f := &countingFetch{payload: "v1"}
	ctx := context.Background()

	_, _, _ = tc.Execute(ctx, pdfRequest(tokenA), f.fetch)
	v.revoke(tokenA)
	f.payload = "v2"

	got, outcome, err := tc.Execute(ctx, pdfRequest(tokenA), f.fetch)
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if outcome != observe.CacheRevalidated {
		t.Errorf("outcome = %s, want revalidated", outcome)
	}
	if string(got) != "v2" {
		t.Errorf("payload = %q, want fresh v2", got)
	}
	if f.calls != 2 {
		t.Errorf("fetch calls = %d, want 2", f.calls)
	}
}

func TestTrustedCache_ValidatorOutageFailsClosed(t *testing.T) {
	v := newFakeValidator(tokenA)
	tc := newTrusted(t, v)
	f := &countingFetch{payload: "v1"}
	ctx := context.Background()

	_, _, _ = tc.Execute(ctx, pdfRequest(tokenA), f.fetch)
	v.mu.Lock()
	v.outage = true
	v.mu.Unlock()

	_, outcome, err := tc.Execute(ctx, pdfRequest(tokenA), f.fetch)
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if outcome != observe.CacheRevalidated || f.calls != 2 {
		t.Errorf("outcome = %s, fetch calls = %d; want revalidated, 2", outcome, f.calls)
	}
}

func TestTrustedCache_RevocationAudited(t *testing.T) {
	var buf bytes.Buffer
	v := newFakeValidator(tokenA, tokenB)
	tc, err := NewTrustedCache(TrustedCacheConfig{
		Cache:     NewResponseCache(DefaultPolicy()),
		Validator: v,
		Auditor:   observe.NewAuditor(observe.NewLoggerWithWriter("debug", &buf)),
	})
	if err != nil {
		t.Fatalf("NewTrustedCache() error = %v", err)
	}
	f := &countingFetch{payload: "v1"}
	ctx := context.Background()

	_, _, _ = tc.Execute(ctx, pdfRequest(tokenA), f.fetch)
	_, _, _ = tc.Execute(ctx, pdfRequest(tokenB), f.fetch)

	v.mu.Lock()
	v.outage = true
	v.mu.Unlock()
	_, _, _ = tc.Execute(ctx, pdfRequest(tokenB), f.fetch)
	if strings.Contains(buf.String(), string(observe.EventTokenRevoked)) {
		t.Fatal("validator outage audited as a revocation")
	}

	v.mu.Lock()
	v.outage = false
	v.mu.Unlock()
	v.revoke(tokenA)
	_, _, _ = tc.Execute(ctx, pdfRequest(tokenA), f.fetch)

	logs := buf.String()
	if got := strings.Count(logs, string(observe.EventTokenRevoked)); got != 1 {
		t.Errorf("revocation events = %d, want 1", got)
	}
	if !strings.Contains(logs, pdfRequest(tokenA).Key().Partition) {
		t.Error("revocation event lacks the partition key")
	}
	if strings.Contains(logs, tokenA) {
		t.Error("raw trust token written to the audit log")
	}
}

func TestTrustedCache_PartitionIsolation(t *testing.T) {
	tc := newTrusted(t, newFakeValidator(tokenA, tokenB))
	ctx := context.Background()

	fa := &countingFetch{payload: "for A"}
	fb := &countingFetch{payload: "for B"}
	_, _, _ = tc.Execute(ctx, pdfRequest(tokenA), fa.fetch)

	got, outcome, _ := tc.Execute(ctx, pdfRequest(tokenB), fb.fetch)
	if outcome != observe.CacheMiss || string(got) != "for B" {
		t.Errorf("token B got (%q, %s), want its own miss", got, outcome)
	}
}

func TestTrustedCache_ErrorsNotCached(t *testing.T) {
	tc := newTrusted(t, newFakeValidator(tokenA))
	ctx := context.Background()
	boom := errors.New("backend down")

	f := &countingFetch{err: boom}
	if _, _, err := tc.Execute(ctx, pdfRequest(tokenA), f.fetch); !errors.Is(err, boom) {
		t.Fatalf("Execute error = %v, want %v", err, boom)
	}

	f.err = nil
	f.payload = "ok"
	_, outcome, _ := tc.Execute(ctx, pdfRequest(tokenA), f.fetch)
	if outcome != observe.CacheMiss {
		t.Errorf("outcome = %s, want miss after failed fetch", outcome)
	}
	if tc.Cache().Stats().Keys != 1 {
		t.Errorf("Keys = %d, want 1", tc.Cache().Stats().Keys)
	}
}

func TestTrustedCache_NoTokenNeverServed(t *testing.T) {
	v := newFakeValidator()
	tc := newTrusted(t, v)
	f := &countingFetch{payload: "anon"}
	ctx := context.Background()

	_, _, _ = tc.Execute(ctx, pdfRequest(""), f.fetch)
	_, outcome, _ := tc.Execute(ctx, pdfRequest(""), f.fetch)

	if outcome != observe.CacheRevalidated {
		t.Errorf("outcome = %s, want revalidated", outcome)
	}
	if f.calls != 2 {
		t.Errorf("fetch calls = %d, want 2", f.calls)
	}
	if v.calls != 0 {
		t.Errorf("validator calls = %d, want 0 for absent token", v.calls)
	}
}

// A present but malformed token clears the shared no_token partition
// before lookup, taking every anonymous entry with it.
func TestTrustedCache_MalformedTokenClearsNoTokenPartition(t *testing.T) {
	tc := newTrusted(t, newFakeValidator(tokenA))
	rc := tc.Cache()
	for _, p := range []string{"/x", "/y", "/z"} {
		rc.Put(NewKey("GET", p, nil, auth.NoTokenPartition), []byte("anon"))
	}
	rc.Put(keyFor(tokenA, "/a"), []byte("a"))

	f := &countingFetch{payload: "fresh"}
	_, outcome, err := tc.Execute(context.Background(), pdfRequest("bad token!"), f.fetch)
	if err != nil || outcome != observe.CacheMiss {
		t.Fatalf("Execute = (%s, %v), want miss", outcome, err)
	}

	s := rc.Stats()
	if s.Partitions[auth.NoTokenPartition] != 1 {
		t.Errorf("no_token entries = %d, want only the fresh one", s.Partitions[auth.NoTokenPartition])
	}
	if s.Partitions[partitionOf(tokenA)] != 1 {
		t.Error("trusted partition affected by malformed token")
	}
}

func TestTrustedCache_Invalidate(t *testing.T) {
	tc := newTrusted(t, newFakeValidator(tokenA))
	ctx := context.Background()
	f := &countingFetch{payload: "v"}

	_, _, _ = tc.Execute(ctx, pdfRequest(tokenA), f.fetch)
	if n := tc.Invalidate(ctx, tokenA); n != 1 {
		t.Errorf("Invalidate() = %d, want 1", n)
	}
	_, outcome, _ := tc.Execute(ctx, pdfRequest(tokenA), f.fetch)
	if outcome != observe.CacheMiss {
		t.Errorf("outcome after Invalidate = %s, want miss", outcome)
	}
}

func TestTrustedCache_InvalidationDuringFetch(t *testing.T) {
	tc := newTrusted(t, newFakeValidator(tokenA))
	ctx := context.Background()

	fetch := func(context.Context) ([]byte, error) {
		tc.Invalidate(ctx, tokenA)
		return []byte("fetched before revocation"), nil
	}
	_, _, _ = tc.Execute(ctx, pdfRequest(tokenA), fetch)

	if tc.Cache().Stats().Keys != 0 {
		t.Error("response fetched across an invalidation was stored")
	}
}
