// Package input implements the two NES controller shift registers.
package input

// Button is a single NES controller button, packed as a bit flag in the order the
// hardware shifts them out: A, B, Select, Start, Up, Down, Left, Right.
type Button uint8

const (
	ButtonA Button = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// Controller is an 8-bit shift register fed from button_state and strobed by writes
// to its bit 0.
type Controller struct {
	buttons       uint8
	shiftRegister uint8
	strobe        bool
	bitsRead      uint8
}

func New() *Controller {
	return &Controller{}
}

func (c *Controller) SetButton(button Button, pressed bool) {
	if pressed {
		c.buttons |= uint8(button)
	} else {
		c.buttons &^= uint8(button)
	}
}

func (c *Controller) SetButtons(buttons [8]bool) {
	var state uint8
	order := [8]Button{ButtonA, ButtonB, ButtonSelect, ButtonStart, ButtonUp, ButtonDown, ButtonLeft, ButtonRight}
	for i, pressed := range buttons {
		if pressed {
			state |= uint8(order[i])
		}
	}
	c.buttons = state
}

func (c *Controller) IsPressed(button Button) bool {
	return (c.buttons & uint8(button)) != 0
}

// Write latches the strobe bit. While strobe is held high the shift register is
// continually reloaded from the live button state; on the falling edge it is loaded
// once more and bit-position tracking restarts from A.
func (c *Controller) Write(value uint8) {
	wasStrobe := c.strobe
	c.strobe = (value & 1) != 0
	if c.strobe || wasStrobe {
		c.shiftRegister = c.buttons
		c.bitsRead = 0
	}
}

// Read returns the next button bit. While strobe is high, reads keep returning the A
// bit without advancing. After 8 bits have been shifted out, further reads return 1
// (open-bus-lite) rather than the button state.
func (c *Controller) Read() uint8 {
	if c.strobe {
		c.shiftRegister = c.buttons
		return c.shiftRegister & 1
	}

	if c.bitsRead >= 8 {
		return 1
	}

	result := c.shiftRegister & 1
	c.shiftRegister >>= 1
	c.bitsRead++
	return result
}

func (c *Controller) Reset() {
	c.buttons = 0
	c.shiftRegister = 0
	c.strobe = false
	c.bitsRead = 0
}

// InputState wires both controllers to their CPU bus addresses.
type InputState struct {
	Controller1 *Controller
	Controller2 *Controller
}

func NewInputState() *InputState {
	return &InputState{
		Controller1: New(),
		Controller2: New(),
	}
}

func (is *InputState) Reset() {
	is.Controller1.Reset()
	is.Controller2.Reset()
}

func (is *InputState) SetButtons1(buttons [8]bool) { is.Controller1.SetButtons(buttons) }
func (is *InputState) SetButtons2(buttons [8]bool) { is.Controller2.SetButtons(buttons) }

// Read serves $4016/$4017. Controller 2's upper bits read back as open bus on real
// hardware; bit 6 set is the conventional approximation used here.
func (is *InputState) Read(address uint16) uint8 {
	switch address {
	case 0x4016:
		return is.Controller1.Read()
	case 0x4017:
		return is.Controller2.Read() | 0x40
	default:
		return 0
	}
}

// Write broadcasts the strobe bit to both controllers, matching how $4016 is wired on
// real hardware.
func (is *InputState) Write(address uint16, value uint8) {
	if address == 0x4016 {
		is.Controller1.Write(value)
		is.Controller2.Write(value)
	}
}
