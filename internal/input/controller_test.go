package input

import "testing"

func TestNew_DefaultState(t *testing.T) {
	c := New()
	if c.buttons != 0 || c.shiftRegister != 0 || c.strobe {
		t.Fatalf("expected zeroed controller, got %+v", c)
	}
}

func TestSetButton_IndividualButtons(t *testing.T) {
	c := New()
	buttons := []Button{ButtonA, ButtonB, ButtonSelect, ButtonStart, ButtonUp, ButtonDown, ButtonLeft, ButtonRight}

	for _, b := range buttons {
		c.SetButton(b, true)
		if !c.IsPressed(b) {
			t.Errorf("button %d should be pressed", b)
		}
		c.SetButton(b, false)
		if c.IsPressed(b) {
			t.Errorf("button %d should be released", b)
		}
	}
}

func TestSetButtons_CombinesState(t *testing.T) {
	c := New()
	c.SetButtons([8]bool{true, false, false, true, false, false, false, false}) // A, Start

	if !c.IsPressed(ButtonA) || !c.IsPressed(ButtonStart) {
		t.Error("expected A and Start pressed")
	}
	if c.IsPressed(ButtonB) || c.IsPressed(ButtonSelect) {
		t.Error("expected B and Select released")
	}
}

func TestWrite_StrobeHigh_ReadsKeepReturningButtonA(t *testing.T) {
	c := New()
	c.SetButton(ButtonA, true)

	c.Write(0x01)
	for i := 0; i < 3; i++ {
		if v := c.Read(); v != 1 {
			t.Errorf("strobe-high read %d: expected 1, got %d", i, v)
		}
	}
}

func TestWrite_StrobeFallingEdge_LatchesSnapshot(t *testing.T) {
	c := New()
	c.SetButton(ButtonA, true)
	c.SetButton(ButtonStart, true)

	c.Write(0x01)
	c.Write(0x00) // falling edge latches buttons and resets bit position

	// A, B, Select, Start, Up, Down, Left, Right
	want := []uint8{1, 0, 0, 1, 0, 0, 0, 0}
	for i, w := range want {
		if v := c.Read(); v != w {
			t.Errorf("read %d: expected %d, got %d", i, w, v)
		}
	}
}

func TestWrite_OnlyBit0Matters(t *testing.T) {
	c := New()
	c.Write(0xFF)
	if !c.strobe {
		t.Error("expected strobe set from 0xFF")
	}
	c.Write(0xFE)
	if c.strobe {
		t.Error("expected strobe clear from 0xFE")
	}
}

func TestRead_AfterEighthBit_ReturnsOne(t *testing.T) {
	c := New()
	c.SetButton(ButtonA, true)
	c.Write(0x01)
	c.Write(0x00)

	for i := 0; i < 8; i++ {
		c.Read()
	}
	for i := 0; i < 3; i++ {
		if v := c.Read(); v != 1 {
			t.Errorf("post-shift-out read %d: expected 1 (open-bus-lite), got %d", i, v)
		}
	}
}

func TestRead_ButtonChangeDuringStrobe_UsesLiveStateUntilFallingEdge(t *testing.T) {
	c := New()
	c.SetButton(ButtonA, true)
	c.Write(0x01)

	// While strobe is held high, reads reflect the live button state, not a snapshot.
	c.SetButton(ButtonA, false)
	if v := c.Read(); v != 0 {
		t.Errorf("expected live state (A released) = 0, got %d", v)
	}
}

func TestReset_ClearsAllState(t *testing.T) {
	c := New()
	c.SetButton(ButtonA, true)
	c.Write(0x01)

	c.Reset()

	if c.buttons != 0 || c.shiftRegister != 0 || c.strobe || c.bitsRead != 0 {
		t.Fatalf("expected fully cleared controller, got %+v", c)
	}
}

func TestInputState_RoutesReadsToCorrectController(t *testing.T) {
	is := NewInputState()
	is.Controller1.SetButton(ButtonA, true)
	is.Controller2.SetButton(ButtonB, true)

	is.Write(0x4016, 0x01)
	is.Write(0x4016, 0x00)

	v1 := is.Read(0x4016)
	v2 := is.Read(0x4017)

	if v1 != 1 {
		t.Errorf("controller 1 first read: expected 1 (A pressed), got %d", v1)
	}
	// Controller 2's open-bus-approximation bit (0x40) is always set alongside its data bit.
	if v2 != 0x40 {
		t.Errorf("controller 2 first read: expected 0x40 (B not bit 0), got 0x%02X", v2)
	}
}

func TestInputState_WriteBroadcastsStrobeToBothControllers(t *testing.T) {
	is := NewInputState()
	is.Write(0x4016, 0x01)

	if !is.Controller1.strobe || !is.Controller2.strobe {
		t.Error("expected both controllers strobed")
	}
}

func TestInputState_Reset(t *testing.T) {
	is := NewInputState()
	is.Controller1.SetButton(ButtonA, true)
	is.Controller2.SetButton(ButtonB, true)

	is.Reset()

	if is.Controller1.buttons != 0 || is.Controller2.buttons != 0 {
		t.Error("expected both controllers reset")
	}
}
