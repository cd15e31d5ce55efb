package store_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/marquee/codec"
	"github.com/jacentio/marquee/store"
)

// --- Fake client ---

type fakeClient struct {
	// batches records the put requests of every BatchWriteItem call.
	batches [][]types.WriteRequest
	// onBatch decides the response to call n (0-based). Nil accepts everything.
	onBatch func(n int, reqs []types.WriteRequest) (*dynamodb.BatchWriteItemOutput, error)

	items      map[string]map[string]types.AttributeValue
	getKeys    []map[string]types.AttributeValue
	scanInputs []*dynamodb.ScanInput
	scanPages  []*dynamodb.ScanOutput
}

func (f *fakeClient) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	reqs := append([]types.WriteRequest(nil), in.RequestItems["Movies"]...)
	n := len(f.batches)
	f.batches = append(f.batches, reqs)
	if f.onBatch == nil {
		return &dynamodb.BatchWriteItemOutput{}, nil
	}
	return f.onBatch(n, reqs)
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.getKeys = append(f.getKeys, in.Key)
	key := in.Key["tconst"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: f.items[key]}, nil
}

func (f *fakeClient) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scanInputs = append(f.scanInputs, in)
	n := len(f.scanInputs) - 1
	if n >= len(f.scanPages) {
		return &dynamodb.ScanOutput{}, nil
	}
	return f.scanPages[n], nil
}

func unprocessed(reqs []types.WriteRequest) *dynamodb.BatchWriteItemOutput {
	return &dynamodb.BatchWriteItemOutput{
		UnprocessedItems: map[string][]types.WriteRequest{"Movies": reqs},
	}
}

func requestKeys(reqs []types.WriteRequest) []string {
	keys := make([]string, 0, len(reqs))
	for _, r := range reqs {
		keys = append(keys, r.PutRequest.Item["tconst"].(*types.AttributeValueMemberS).Value)
	}
	return keys
}

func docs(n int) []codec.Map {
	out := make([]codec.Map, n)
	for i := range out {
		out[i] = codec.Map{
			"tconst":       codec.Text(fmt.Sprintf("tt%04d", i)),
			"primaryTitle": codec.Text(fmt.Sprintf("Title %d", i)),
			"startYear":    codec.Number("2000"),
		}
	}
	return out
}

type sleepRecorder struct {
	waits []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newStore(client store.API, cfg store.Config) (*store.Store, *sleepRecorder) {
	s := store.New(client, cfg, nil)
	rec := &sleepRecorder{}
	store.SetSleep(s, rec.sleep)
	return s, rec
}

// --- Config ---

func TestDefaultConfig(t *testing.T) {
	cfg := store.DefaultConfig()

	if cfg.TableName != "Movies" {
		t.Errorf("expected TableName Movies, got %q", cfg.TableName)
	}
	if cfg.KeyAttribute != "tconst" {
		t.Errorf("expected KeyAttribute tconst, got %q", cfg.KeyAttribute)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("expected BatchSize 25, got %d", cfg.BatchSize)
	}
	if cfg.Retry.MaxRetries <= 0 {
		t.Errorf("expected bounded positive MaxRetries, got %d", cfg.Retry.MaxRetries)
	}
}

func TestInterfaceCompliance(t *testing.T) {
	var _ store.API = (*dynamodb.Client)(nil)
	var _ error = (*store.FatalWriteError)(nil)
}

// --- WriteAll ---

func TestWriteAll_ChunksOf25(t *testing.T) {
	client := &fakeClient{}
	s, rec := newStore(client, store.DefaultConfig())

	res, err := s.WriteAll(context.Background(), docs(30))
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	if len(client.batches) != 2 {
		t.Fatalf("expected 2 BatchWriteItem calls, got %d", len(client.batches))
	}
	if len(client.batches[0]) != 25 || len(client.batches[1]) != 5 {
		t.Errorf("expected sizes 25 and 5, got %d and %d", len(client.batches[0]), len(client.batches[1]))
	}
	if got := requestKeys(client.batches[1]); got[0] != "tt0025" || got[4] != "tt0029" {
		t.Errorf("expected second chunk tt0025..tt0029, got %v", got)
	}
	if res.Written != 30 || res.Batches != 2 || res.Retries != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(rec.waits) != 0 {
		t.Errorf("expected no waits, got %v", rec.waits)
	}
}

func TestWriteAll_ItemShape(t *testing.T) {
	client := &fakeClient{}
	s, _ := newStore(client, store.DefaultConfig())

	doc := codec.Map{
		"tconst":  codec.Text("tt1"),
		"genres":  codec.TextList([]string{"Drama"}),
		"ratings": codec.Map{"numVotes": codec.Number("10")},
	}
	if _, err := s.WriteAll(context.Background(), []codec.Map{doc}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	item := client.batches[0][0].PutRequest.Item
	back, err := codec.UnmarshalItem(item)
	if err != nil {
		t.Fatalf("UnmarshalItem: %v", err)
	}
	if !reflect.DeepEqual(back, doc) {
		t.Errorf("expected %#v, got %#v", doc, back)
	}
}

func TestWriteAll_DedupeAndSkip(t *testing.T) {
	client := &fakeClient{}
	s, _ := newStore(client, store.DefaultConfig())

	in := []codec.Map{
		{"tconst": codec.Text("tt0005"), "primaryTitle": codec.Text("first")},
		{"primaryTitle": codec.Text("no key")},
		{"tconst": codec.Text("tt0001")},
		{"tconst": codec.Text("tt0005"), "primaryTitle": codec.Text("second")},
	}
	res, err := s.WriteAll(context.Background(), in)
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	if got := requestKeys(client.batches[0]); !reflect.DeepEqual(got, []string{"tt0005", "tt0001"}) {
		t.Errorf("expected [tt0005 tt0001], got %v", got)
	}
	title := client.batches[0][0].PutRequest.Item["primaryTitle"].(*types.AttributeValueMemberS).Value
	if title != "first" {
		t.Errorf("expected first occurrence kept, got %q", title)
	}
	if res.Submitted != 4 || res.Written != 2 || res.Duplicates != 1 || res.Skipped != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestWriteAll_Empty(t *testing.T) {
	client := &fakeClient{}
	s, _ := newStore(client, store.DefaultConfig())

	res, err := s.WriteAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(client.batches) != 0 || res.Batches != 0 {
		t.Errorf("expected no calls, got %d", len(client.batches))
	}
}

func TestWriteAll_ResubmitsExactlyUnprocessed(t *testing.T) {
	client := &fakeClient{
		onBatch: func(n int, reqs []types.WriteRequest) (*dynamodb.BatchWriteItemOutput, error) {
			if n == 0 {
				return unprocessed(reqs[len(reqs)-3:]), nil
			}
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}
	s, rec := newStore(client, store.DefaultConfig())

	res, err := s.WriteAll(context.Background(), docs(10))
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	if len(client.batches) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(client.batches))
	}
	want := []string{"tt0007", "tt0008", "tt0009"}
	if got := requestKeys(client.batches[1]); !reflect.DeepEqual(got, want) {
		t.Errorf("expected resubmission of %v, got %v", want, got)
	}
	if len(rec.waits) != 1 || rec.waits[0] <= 0 {
		t.Errorf("expected one positive wait before resubmission, got %v", rec.waits)
	}
	if res.Retries != 1 || res.Written != 10 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestWriteAll_ShrinkingUnprocessed(t *testing.T) {
	client := &fakeClient{
		onBatch: func(n int, reqs []types.WriteRequest) (*dynamodb.BatchWriteItemOutput, error) {
			if len(reqs) > 1 {
				return unprocessed(reqs[1:]), nil
			}
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}
	s, rec := newStore(client, store.DefaultConfig())

	if _, err := s.WriteAll(context.Background(), docs(4)); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	sizes := make([]int, len(client.batches))
	for i, b := range client.batches {
		sizes[i] = len(b)
	}
	if !reflect.DeepEqual(sizes, []int{4, 3, 2, 1}) {
		t.Errorf("expected sizes [4 3 2 1], got %v", sizes)
	}
	for i := 1; i < len(rec.waits); i++ {
		if rec.waits[i] < rec.waits[0]/2 {
			t.Errorf("wait %d (%v) shrank well below first wait %v", i, rec.waits[i], rec.waits[0])
		}
	}
}

func TestWriteAll_RetryCeiling(t *testing.T) {
	client := &fakeClient{
		onBatch: func(_ int, reqs []types.WriteRequest) (*dynamodb.BatchWriteItemOutput, error) {
			return unprocessed(reqs), nil
		},
	}
	cfg := store.DefaultConfig()
	cfg.Retry.MaxRetries = 2
	s, rec := newStore(client, cfg)

	res, err := s.WriteAll(context.Background(), docs(3))

	var fatal *store.FatalWriteError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalWriteError, got %v", err)
	}
	if !errors.Is(err, store.ErrRetriesExhausted) {
		t.Errorf("expected ErrRetriesExhausted cause, got %v", fatal.Err)
	}
	if fatal.Attempts != 3 || len(client.batches) != 3 {
		t.Errorf("expected 3 attempts, got %d (calls %d)", fatal.Attempts, len(client.batches))
	}
	if !reflect.DeepEqual(fatal.Keys, []string{"tt0000", "tt0001", "tt0002"}) {
		t.Errorf("expected unwritten keys, got %v", fatal.Keys)
	}
	if len(rec.waits) != 2 {
		t.Errorf("expected 2 waits, got %d", len(rec.waits))
	}
	if res.Written != 0 || res.Retries != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	if !strings.Contains(err.Error(), "Movies") {
		t.Errorf("expected table in message, got %q", err.Error())
	}
}

func TestWriteAll_StopsAtFailingChunk(t *testing.T) {
	client := &fakeClient{
		onBatch: func(n int, reqs []types.WriteRequest) (*dynamodb.BatchWriteItemOutput, error) {
			if n == 1 {
				return nil, errors.New("access denied")
			}
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}
	s, rec := newStore(client, store.DefaultConfig())

	res, err := s.WriteAll(context.Background(), docs(60))

	var fatal *store.FatalWriteError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalWriteError, got %v", err)
	}
	if len(fatal.Keys) != 25 || fatal.Keys[0] != "tt0025" {
		t.Errorf("expected second chunk keys, got %d starting %v", len(fatal.Keys), fatal.Keys)
	}
	if len(client.batches) != 2 {
		t.Errorf("expected write to stop after failing chunk, got %d calls", len(client.batches))
	}
	if res.Written != 25 || res.Batches != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(rec.waits) != 0 {
		t.Errorf("expected no retry for non-throttle error, got %v", rec.waits)
	}
}

func TestWriteAll_ThrottleRetriesWholeChunk(t *testing.T) {
	client := &fakeClient{
		onBatch: func(n int, reqs []types.WriteRequest) (*dynamodb.BatchWriteItemOutput, error) {
			if n == 0 {
				return nil, &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
			}
			return &dynamodb.BatchWriteItemOutput{}, nil
		},
	}
	s, rec := newStore(client, store.DefaultConfig())

	res, err := s.WriteAll(context.Background(), docs(5))
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(client.batches) != 2 || len(client.batches[1]) != 5 {
		t.Errorf("expected whole chunk resubmitted, got %d calls", len(client.batches))
	}
	if len(rec.waits) != 1 || res.Retries != 1 {
		t.Errorf("expected one retry, got waits %v result %+v", rec.waits, res)
	}
}

func TestWriteAll_ContextCanceledDuringWait(t *testing.T) {
	client := &fakeClient{
		onBatch: func(_ int, reqs []types.WriteRequest) (*dynamodb.BatchWriteItemOutput, error) {
			return unprocessed(reqs), nil
		},
	}
	s := store.New(client, store.DefaultConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.WriteAll(ctx, docs(2))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var fatal *store.FatalWriteError
	if !errors.As(err, &fatal) || len(fatal.Keys) != 2 {
		t.Errorf("expected FatalWriteError with 2 keys, got %v", err)
	}
}

func TestWriteAll_CustomBatchSize(t *testing.T) {
	client := &fakeClient{}
	cfg := store.DefaultConfig()
	cfg.BatchSize = 4
	s, _ := newStore(client, cfg)

	res, err := s.WriteAll(context.Background(), docs(10))
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if res.Batches != 3 || len(client.batches[2]) != 2 {
		t.Errorf("expected chunks 4,4,2, got %d batches", res.Batches)
	}
}

func TestPutBatch_TooLarge(t *testing.T) {
	s, _ := newStore(&fakeClient{}, store.DefaultConfig())

	_, err := s.PutBatch(context.Background(), docs(26))
	if !errors.Is(err, store.ErrBatchTooLarge) {
		t.Errorf("expected ErrBatchTooLarge, got %v", err)
	}
}

// --- Get ---

func TestGet(t *testing.T) {
	client := &fakeClient{items: map[string]map[string]types.AttributeValue{
		"tt1": codec.MarshalItem(codec.Map{
			"tconst":    codec.Text("tt1"),
			"startYear": codec.Number("1999"),
		}),
	}}
	s, _ := newStore(client, store.DefaultConfig())

	doc, err := s.Get(context.Background(), "tt1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc["startYear"] != codec.Number("1999") {
		t.Errorf("expected startYear 1999, got %#v", doc["startYear"])
	}
	if len(client.getKeys) != 1 || len(client.getKeys[0]) != 1 {
		t.Errorf("expected single key attribute, got %v", client.getKeys)
	}

	_, err = s.Get(context.Background(), "tt404")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// --- Scan ---

func TestScan_ProjectionAndFilter(t *testing.T) {
	client := &fakeClient{scanPages: []*dynamodb.ScanOutput{{
		Items: []map[string]types.AttributeValue{
			codec.MarshalItem(codec.Map{"tconst": codec.Text("tt1"), "startYear": codec.Number("2015")}),
		},
		LastEvaluatedKey: map[string]types.AttributeValue{"tconst": &types.AttributeValueMemberS{Value: "tt1"}},
	}}}
	s, _ := newStore(client, store.DefaultConfig())

	items, err := s.Scan(context.Background(), store.ScanInput{
		Projection: []string{"tconst", "startYear", "ratings.numVotes"},
		Filter: store.All(
			store.Equal("titleType", "movie"),
			store.Between("startYear", 2014, 2024),
		),
		Limit: 50,
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(client.scanInputs) != 1 {
		t.Fatalf("expected a single page read, got %d", len(client.scanInputs))
	}
	if len(items) != 1 || items[0]["startYear"] != codec.Number("2015") {
		t.Errorf("unexpected items %v", items)
	}

	in := client.scanInputs[0]
	if aws.ToString(in.TableName) != "Movies" {
		t.Errorf("expected table Movies, got %q", aws.ToString(in.TableName))
	}
	if aws.ToInt32(in.Limit) != 50 {
		t.Errorf("expected limit 50, got %d", aws.ToInt32(in.Limit))
	}
	if in.ProjectionExpression == nil || in.FilterExpression == nil {
		t.Fatal("expected projection and filter expressions")
	}
	if !strings.Contains(*in.FilterExpression, "BETWEEN") {
		t.Errorf("expected BETWEEN in filter, got %q", *in.FilterExpression)
	}
	names := map[string]bool{}
	for _, n := range in.ExpressionAttributeNames {
		names[n] = true
	}
	for _, want := range []string{"tconst", "startYear", "ratings", "numVotes", "titleType"} {
		if !names[want] {
			t.Errorf("expected attribute name %q in %v", want, in.ExpressionAttributeNames)
		}
	}

	var sawMovie, saw2014, saw2024 bool
	for _, v := range in.ExpressionAttributeValues {
		switch av := v.(type) {
		case *types.AttributeValueMemberS:
			sawMovie = sawMovie || av.Value == "movie"
		case *types.AttributeValueMemberN:
			saw2014 = saw2014 || av.Value == "2014"
			saw2024 = saw2024 || av.Value == "2024"
		}
	}
	if !sawMovie || !saw2014 || !saw2024 {
		t.Errorf("expected movie, 2014 and 2024 values, got %v", in.ExpressionAttributeValues)
	}
}

func TestScan_NoExpression(t *testing.T) {
	client := &fakeClient{}
	s, _ := newStore(client, store.DefaultConfig())

	if _, err := s.Scan(context.Background(), store.ScanInput{}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	in := client.scanInputs[0]
	if in.ProjectionExpression != nil || in.FilterExpression != nil {
		t.Errorf("expected no expressions, got %+v", in)
	}
}

func TestScan_AllPages(t *testing.T) {
	page := func(key string, last bool) *dynamodb.ScanOutput {
		out := &dynamodb.ScanOutput{Items: []map[string]types.AttributeValue{
			codec.MarshalItem(codec.Map{"tconst": codec.Text(key)}),
		}}
		if !last {
			out.LastEvaluatedKey = map[string]types.AttributeValue{"tconst": &types.AttributeValueMemberS{Value: key}}
		}
		return out
	}
	client := &fakeClient{scanPages: []*dynamodb.ScanOutput{page("tt1", false), page("tt2", false), page("tt3", true)}}
	s, _ := newStore(client, store.DefaultConfig())

	items, err := s.Scan(context.Background(), store.ScanInput{AllPages: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(items) != 3 || len(client.scanInputs) != 3 {
		t.Errorf("expected 3 items over 3 pages, got %d items %d calls", len(items), len(client.scanInputs))
	}
}

func TestAll(t *testing.T) {
	if store.All() != nil {
		t.Error("expected nil for no conditions")
	}
	if store.All(store.Equal("a", 1)) == nil {
		t.Error("expected single condition returned")
	}
}
