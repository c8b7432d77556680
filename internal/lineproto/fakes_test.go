package lineproto

// fakeBinary is a BinarySource with a settable state.
type fakeBinary struct {
	id    string
	has   bool
	state bool
}

func (s *fakeBinary) HasState() bool   { return s.has }
func (s *fakeBinary) ObjectID() string { return s.id }
func (s *fakeBinary) State() bool      { return s.state }

// fakeNumeric is a NumericSource with settable calibrated and raw values.
type fakeNumeric struct {
	id    string
	has   bool
	state float64
	raw   float64
}

func (s *fakeNumeric) HasState() bool    { return s.has }
func (s *fakeNumeric) ObjectID() string  { return s.id }
func (s *fakeNumeric) State() float64    { return s.state }
func (s *fakeNumeric) RawState() float64 { return s.raw }

// fakeText is a TextSource with settable processed and raw values.
type fakeText struct {
	id    string
	has   bool
	state string
	raw   string
}

func (s *fakeText) HasState() bool   { return s.has }
func (s *fakeText) ObjectID() string { return s.id }
func (s *fakeText) State() string    { return s.state }
func (s *fakeText) RawState() string { return s.raw }
