package mqtt

import (
	"context"
	"errors"
	"testing"

	"homelink/internal/models"
	"homelink/internal/queue"
)

type fakeSink struct {
	caller models.Caller
	req    queue.EnqueueRequest
	calls  int
}

func (f *fakeSink) Enqueue(_ context.Context, caller models.Caller, req queue.EnqueueRequest) (*models.Command, error) {
	f.calls++
	f.caller = caller
	f.req = req
	return &models.Command{ID: 1}, nil
}

type fakeDevices map[int64]*models.Device

func (f fakeDevices) GetDevice(_ context.Context, id int64) (*models.Device, error) {
	if d, ok := f[id]; ok {
		return d, nil
	}
	return nil, models.ErrNotFound
}

func TestParseDeviceID(t *testing.T) {
	id, err := ParseDeviceID("devices/12/events")
	if err != nil || id != 12 {
		t.Fatalf("expected 12, got %d %v", id, err)
	}
	for _, topic := range []string{"devices/x/events", "sensors/1/events", "devices"} {
		if _, err := ParseDeviceID(topic); !errors.Is(err, models.ErrValidation) {
			t.Errorf("%q: expected validation error, got %v", topic, err)
		}
	}
}

func TestHandleEvent_SelfExecutes(t *testing.T) {
	acct := int64(9)
	sink := &fakeSink{}
	b := NewBridge(nil, sink, fakeDevices{4: {ID: 4, OwnerID: 2, AccountID: &acct}})

	err := b.HandleEvent(context.Background(), "devices/4/events", []byte(`{"name":"Button","action":"pressed"}`))
	if err != nil {
		t.Fatal(err)
	}
	if sink.calls != 1 || !sink.req.SelfExecute || *sink.req.DeviceID != 4 {
		t.Fatalf("expected one self-executing command for device 4, got %+v", sink.req)
	}
	if sink.req.Data != (models.CommandPayload{Name: "Button", Action: "pressed"}) {
		t.Fatalf("unexpected payload %+v", sink.req.Data)
	}
	if !sink.caller.IsDevice() || sink.caller.ID != acct || sink.caller.OwnerID != 2 {
		t.Fatalf("expected device caller for the account, got %+v", sink.caller)
	}
}

func TestHandleEvent_Rejects(t *testing.T) {
	sink := &fakeSink{}
	b := NewBridge(nil, sink, fakeDevices{})

	if err := b.HandleEvent(context.Background(), "devices/4/events", []byte(`{`)); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := b.HandleEvent(context.Background(), "devices/4/events", []byte(`{"name":"a","action":"b"}`)); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if sink.calls != 0 {
		t.Fatal("nothing should be enqueued")
	}
}
