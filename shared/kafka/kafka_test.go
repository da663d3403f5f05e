package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"incidentwatch/types"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestPublishIncidents(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var inc types.Incident
		if err := json.Unmarshal(val, &inc); err != nil {
			return err
		}
		if inc.ID != "i1" {
			return errors.New("unexpected incident " + inc.ID)
		}
		return nil
	})
	sp.ExpectSendMessageAndSucceed()

	p := NewProducerWithSync(sp, ProducerConfig{})
	res := p.PublishIncidents([]*types.Incident{{ID: "i1"}, {ID: "i2"}, nil})
	if len(res.Saved) != 2 || len(res.Failed) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestPublishReportsFailedMessages(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndSucceed()
	sp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	p := NewProducerWithSync(sp, ProducerConfig{CoordinationTopic: "groups"})
	res := p.PublishGroups([]types.CoordinationGroup{{ID: "g1"}, {ID: "g2"}})
	if len(res.Saved) != 1 || res.Saved[0] != "g1" {
		t.Fatalf("expected g1 saved, got %v", res.Saved)
	}
	if ids := res.FailedIDs(); len(ids) != 1 || ids[0] != "g2" {
		t.Fatalf("expected g2 failed, got %v", ids)
	}
	_ = p.Close()
}

func TestTypedMessageHandler(t *testing.T) {
	var got []string
	h := &TypedMessageHandler[types.ArticleBatch]{
		Validate: func(b *types.ArticleBatch) bool { return len(b.Articles) > 0 },
		Process: func(_ context.Context, b *types.ArticleBatch) error {
			if b.BatchID == "boom" {
				return errors.New("pipeline unavailable")
			}
			got = append(got, b.BatchID)
			return nil
		},
		AlwaysMark: true,
	}
	ctx := context.Background()

	tests := []struct {
		name     string
		payload  string
		wantMark bool
		wantErr  bool
	}{
		{"valid batch", `{"batch_id":"b1","articles":[{"id":"a1","title":"t"}]}`, true, false},
		{"invalid json is skipped", `{not json`, true, false},
		{"empty batch is skipped", `{"batch_id":"b2","articles":[]}`, true, false},
		{"processing failure is retried", `{"batch_id":"boom","articles":[{"id":"a2"}]}`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mark, err := h.HandleMessage(ctx, []byte(tt.payload))
			if mark != tt.wantMark || (err != nil) != tt.wantErr {
				t.Fatalf("HandleMessage = %v, %v", mark, err)
			}
		})
	}
	if len(got) != 1 || got[0] != "b1" {
		t.Fatalf("processed batches = %v", got)
	}
}
