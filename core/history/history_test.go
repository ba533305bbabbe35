package history

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/driftwire/driftwire-go/core/catchup"
	"github.com/driftwire/driftwire-go/core/comment"
	"github.com/driftwire/driftwire-go/core/envelope"
)

const testNow int64 = 10_000_000_000

var testKey = func() ed25519.PrivateKey {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return priv
}()

func makeComment(t *testing.T, ts int64, text string) *envelope.RawMessage {
	t.Helper()
	payload, err := envelope.EncodeCommentPayload("tester", text)
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	raw, err := envelope.Seal(testKey, ts, payload)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	return raw
}

func TestRespond_EmptyForNoMatches(t *testing.T) {
	store := comment.NewStore()
	store.Add(makeComment(t, testNow-100, "old"), testNow)

	if batches := Respond(store, testNow); batches != nil {
		t.Errorf("Respond returned %d batches, want none", len(batches))
	}
}

func TestRespond_StrictlyAfterStart(t *testing.T) {
	store := comment.NewStore()
	at := makeComment(t, testNow-200, "at start")
	after := makeComment(t, testNow-100, "after start")
	store.Add(at, testNow)
	store.Add(after, testNow)

	batches := Respond(store, testNow-200)
	if len(batches) != 1 {
		t.Fatalf("Respond returned %d batches, want 1", len(batches))
	}
	if len(batches[0]) != 1 || batches[0][0].Signature != after.Signature {
		t.Error("Respond should return only comments strictly after the start timestamp")
	}
}

func TestSplitBatches_SizeBound(t *testing.T) {
	// Each envelope carries a ~1200-byte body, so batches should flush
	// well before holding all of them.
	var raws []envelope.RawMessage
	body := strings.Repeat("x", 1200)
	for i := 0; i < 20; i++ {
		raw := makeComment(t, testNow-int64(1000-i), body)
		raws = append(raws, *raw)
	}
	perEnvelope := envelope.EncodedSize(&raws[0])

	batches := SplitBatches(raws)
	if len(batches) < 2 {
		t.Fatalf("expected multiple batches, got %d", len(batches))
	}

	total := 0
	for _, batch := range batches {
		size := 0
		for i := range batch {
			size += envelope.EncodedSize(&batch[i])
		}
		// Bound: threshold plus at most one envelope of overshoot.
		if size >= BatchSizeLimit+perEnvelope {
			t.Errorf("batch size %d exceeds limit %d plus one envelope %d",
				size, BatchSizeLimit, perEnvelope)
		}
		total += len(batch)
	}
	if total != len(raws) {
		t.Errorf("batches contain %d envelopes, want %d", total, len(raws))
	}
}

func TestSplitBatches_PreservesOrder(t *testing.T) {
	var raws []envelope.RawMessage
	for i := 0; i < 5; i++ {
		raws = append(raws, *makeComment(t, testNow-int64(100-i), "m"))
	}

	var flattened []envelope.RawMessage
	for _, batch := range SplitBatches(raws) {
		flattened = append(flattened, batch...)
	}
	for i := range raws {
		if flattened[i].Signature != raws[i].Signature {
			t.Fatalf("order broken at %d", i)
		}
	}
}

func TestIngest_DropsPreWatermark(t *testing.T) {
	store := comment.NewStore()
	tracker := catchup.NewMemoryTracker(func() int64 { return testNow })
	tracker.Set(testNow - 100)

	older := makeComment(t, testNow-101, "before watermark")
	equal := makeComment(t, testNow-100, "at watermark")
	newer := makeComment(t, testNow-99, "after watermark")

	added := Ingest(store, tracker, []envelope.RawMessage{*older, *equal, *newer}, testNow)
	if added != 2 {
		t.Errorf("Ingest added %d, want 2 (equal passes, older dropped)", added)
	}
	for _, c := range store.Comments() {
		if c.Timestamp < testNow-100 {
			t.Error("a pre-watermark envelope reached the store")
		}
	}
}

func TestIngest_StillAppliesExpiryAndDedup(t *testing.T) {
	store := comment.NewStore()
	// Watermark far enough back that expiry is the binding filter.
	tracker := catchup.NewMemoryTracker(func() int64 { return testNow })
	tracker.Set(testNow - 2*comment.ExpiryWindow)

	expired := makeComment(t, testNow-comment.ExpiryWindow-1, "expired")
	fresh := makeComment(t, testNow-10, "fresh")

	batch := []envelope.RawMessage{*expired, *fresh, *fresh}
	if added := Ingest(store, tracker, batch, testNow); added != 1 {
		t.Errorf("Ingest added %d, want 1", added)
	}
}

func TestIngest_ReadsWatermarkFresh(t *testing.T) {
	store := comment.NewStore()
	tracker := catchup.NewMemoryTracker(func() int64 { return testNow })
	tracker.Set(testNow - 1000)

	// Simulate the watermark advancing mid-batch, as live traffic would:
	// wrap the tracker so the second read reflects the move.
	moving := &advancingTracker{Tracker: tracker, after: testNow - 50}

	early := makeComment(t, testNow-500, "passes first read")
	late := makeComment(t, testNow-500, "fails second read")

	added := Ingest(store, moving, []envelope.RawMessage{*early, *late}, testNow)
	if added != 1 {
		t.Errorf("Ingest added %d, want 1 (second envelope filtered by fresh read)", added)
	}
}

// advancingTracker bumps the watermark after the first Get, emulating
// concurrent live traffic advancing it mid-ingest.
type advancingTracker struct {
	catchup.Tracker
	after int64
	reads int
}

func (a *advancingTracker) Get() int64 {
	a.reads++
	if a.reads > 1 {
		return a.after
	}
	return a.Tracker.Get()
}

func TestIngest_OverlappingBatchesUnion(t *testing.T) {
	store := comment.NewStore()
	tracker := catchup.NewMemoryTracker(func() int64 { return testNow })
	tracker.Set(testNow - catchup.DefaultLookback)

	a := makeComment(t, testNow-300, "a")
	b := makeComment(t, testNow-200, "b")
	c := makeComment(t, testNow-100, "c")

	// Two peers answer the same request with overlapping sets.
	Ingest(store, tracker, []envelope.RawMessage{*a, *b}, testNow)
	Ingest(store, tracker, []envelope.RawMessage{*b, *c, *a}, testNow)

	comments := store.Comments()
	if len(comments) != 3 {
		t.Fatalf("store has %d comments, want 3 (deduped union)", len(comments))
	}
	for i := 1; i < len(comments); i++ {
		if comments[i].Timestamp < comments[i-1].Timestamp {
			t.Error("union is not sorted by timestamp")
		}
	}
}
