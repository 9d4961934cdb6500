package audit

import (
	"context"
	"testing"
)

type fakeProducer struct {
	keys [][]byte
}

func (f *fakeProducer) Produce(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error {
	f.keys = append(f.keys, key)
	return nil
}

func TestKafkaSinkUsesEventIDAsMessageKey(t *testing.T) {
	fp := &fakeProducer{}
	sink := NewKafkaSink(fp, "admission-events")

	err := sink.CommitBatch(context.Background(), []Event{
		{EventID: "evt-1", FlowID: "tenant-a", Decision: DecisionAdmitted},
	})
	if err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}
	if len(fp.keys) != 1 || string(fp.keys[0]) != "evt-1" {
		t.Fatalf("expected message key \"evt-1\", got %v", fp.keys)
	}
}

func TestBuildSinkSelectsByAdapterName(t *testing.T) {
	for _, name := range []string{"", "mock", "redis", "kafka"} {
		if _, err := BuildSink(name, Options{}); err != nil {
			t.Fatalf("BuildSink(%q): %v", name, err)
		}
	}
	if _, err := BuildSink("postgres", Options{}); err == nil {
		t.Fatal("expected BuildSink(\"postgres\", ...) with no *sql.DB to fail")
	}
	if _, err := BuildSink("file", Options{}); err == nil {
		t.Fatal("expected BuildSink(\"file\", ...) with no FilePath to fail")
	}
	if _, err := BuildSink("bogus", Options{}); err == nil {
		t.Fatal("expected an unknown adapter name to error")
	}
}

func TestBuildSinkFileAdapterSucceedsWithFilePath(t *testing.T) {
	path := t.TempDir() + "/events.jsonl"
	sink, err := BuildSink("file", Options{FilePath: path})
	if err != nil {
		t.Fatalf("BuildSink(\"file\", ...): %v", err)
	}
	fs, ok := sink.(*FileSink)
	if !ok {
		t.Fatalf("expected *FileSink, got %T", sink)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
