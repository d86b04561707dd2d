package page

import "testing"

func TestPage_PinUnpin(t *testing.T) {
	p := New()
	if p.PinCount() != 0 {
		t.Fatalf("fresh page pin count = %d, want 0", p.PinCount())
	}

	p.Pin()
	p.Pin()
	if p.PinCount() != 2 {
		t.Fatalf("pin count = %d, want 2", p.PinCount())
	}

	p.Unpin()
	p.Unpin()
	p.Unpin() // must not go negative
	if p.PinCount() != 0 {
		t.Fatalf("pin count = %d, want 0", p.PinCount())
	}
}

func TestPage_Reset(t *testing.T) {
	p := New()
	p.SetID(42)
	p.SetDirty(true)
	p.SetLSN(7)
	p.Pin()
	p.Data()[0] = 0xAB

	p.Reset()

	if p.ID() != InvalidID {
		t.Fatalf("id = %d, want %d", p.ID(), InvalidID)
	}
	if p.IsDirty() || p.PinCount() != 0 || p.LSN() != 0 {
		t.Fatalf("reset left state behind: dirty=%v pins=%d lsn=%d", p.IsDirty(), p.PinCount(), p.LSN())
	}
	if p.Data()[0] != 0 {
		t.Fatal("reset did not zero data")
	}
}
