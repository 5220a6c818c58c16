package app

import (
	"sort"
	"testing"
	"time"
)

func waitRefresh(t *testing.T, ch <-chan RefreshMsg) RefreshMsg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresh")
		return RefreshMsg{}
	}
}

func TestCoalescerBatchesBurst(t *testing.T) {
	out := make(chan RefreshMsg, 1)
	c := newCoalescer(20*time.Millisecond, out)
	defer c.Stop()

	c.Add("!ops:example.org")
	c.Add("!dev:example.org")
	c.Add("!ops:example.org")

	msg := waitRefresh(t, out)
	sort.Strings(msg.Rooms)
	if len(msg.Rooms) != 2 || msg.Rooms[0] != "!dev:example.org" || msg.Rooms[1] != "!ops:example.org" {
		t.Fatalf("rooms = %v", msg.Rooms)
	}
	if msg.RefreshAll {
		t.Fatal("burst of two rooms should not refresh everything")
	}

	select {
	case extra := <-out:
		t.Fatalf("unexpected second refresh %v", extra)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestCoalescerEmptyRoomRefreshesAll(t *testing.T) {
	out := make(chan RefreshMsg, 1)
	c := newCoalescer(10*time.Millisecond, out)
	defer c.Stop()

	c.Add("")
	msg := waitRefresh(t, out)
	if !msg.RefreshAll {
		t.Fatal("expected RefreshAll")
	}
}

func TestCoalescerQuietPeriodResets(t *testing.T) {
	out := make(chan RefreshMsg, 1)
	c := newCoalescer(50*time.Millisecond, out)
	defer c.Stop()

	c.Add("!ops:example.org")
	time.Sleep(25 * time.Millisecond)
	c.Add("!dev:example.org")

	select {
	case <-out:
		t.Fatal("flush fired before quiet period elapsed")
	case <-time.After(30 * time.Millisecond):
	}

	msg := waitRefresh(t, out)
	if len(msg.Rooms) != 2 {
		t.Fatalf("rooms = %v", msg.Rooms)
	}
}

func TestCoalescerStopSuppressesFlush(t *testing.T) {
	out := make(chan RefreshMsg, 1)
	c := newCoalescer(10*time.Millisecond, out)

	c.Add("!ops:example.org")
	c.Stop()

	select {
	case msg := <-out:
		t.Fatalf("refresh after Stop: %v", msg)
	case <-time.After(40 * time.Millisecond):
	}
}
