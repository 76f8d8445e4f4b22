package inject

// Permissions probes the capture and injection prerequisites. Microphone
// is granted when at least one capture device is visible; accessibility
// when the keystroke synthesizer initializes.
type Permissions struct {
	Devices  func() (int, error)
	Keyboard func() error
}

func NewPermissions(devices func() (int, error)) *Permissions {
	return &Permissions{Devices: devices, Keyboard: InitKeyboard}
}

func (p *Permissions) Microphone() bool {
	if p.Devices == nil {
		return false
	}
	n, err := p.Devices()
	return err == nil && n > 0
}

func (p *Permissions) Accessibility() bool {
	if p.Keyboard == nil {
		return false
	}
	return p.Keyboard() == nil
}
