package consumerWorker

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/wb-go/wbf/zlog"

	"memberhub/internal/dto"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

func TestHandleDropsMalformedMessage(t *testing.T) {
	r := &Reader{}
	if err := r.handle([]byte("{not json")); err != nil {
		t.Fatalf("malformed message must be dropped, not redelivered: %v", err)
	}
}

func TestHandleSkipsMessageWithoutRecipient(t *testing.T) {
	r := &Reader{}
	body, err := json.Marshal(dto.NotificationMessage{Kind: dto.NotifyPromoted})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.handle(body); err != nil {
		t.Fatalf("message without recipient must be acked, got %v", err)
	}
}
