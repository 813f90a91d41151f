package modbus

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort records writes and replays a canned response.
type fakePort struct {
	written  bytes.Buffer
	response *bytes.Reader
	closed   bool
}

func newFakePort(response []byte) *fakePort {
	return &fakePort{response: bytes.NewReader(response)}
}

func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }
func (p *fakePort) Read(b []byte) (int, error)  { return p.response.Read(b) }
func (p *fakePort) Close() error                { p.closed = true; return nil }

func registerResponse(slave byte, regs []uint16) []byte {
	frame := []byte{slave, FuncReadInputRegisters, byte(len(regs) * 2)}
	for _, r := range regs {
		frame = append(frame, byte(r>>8), byte(r))
	}
	return appendCRC(frame)
}

func TestReadInputRegistersRequestFrame(t *testing.T) {
	// PZEM-004T datasheet example: read 10 input registers from slave 1.
	want := []byte{0x01, 0x04, 0x00, 0x00, 0x00, 0x0A, 0x70, 0x0D}
	assert.Equal(t, want, ReadInputRegistersRequest(0x01, 0x0000, 10))
}

func TestCRC16KnownResponse(t *testing.T) {
	frame := []byte{1, 4, 20, 8, 252, 5, 220, 0, 0, 1, 244, 0, 0, 3, 232, 0, 0, 1, 244, 0, 95, 0, 0, 12, 18}
	assert.True(t, checkCRC(frame))

	frame[5] ^= 0xFF
	assert.False(t, checkCRC(frame))
}

func TestClientReadInputRegisters(t *testing.T) {
	regs := []uint16{2300, 1500, 0, 500, 0, 1000, 0, 500, 95, 0}
	port := newFakePort(registerResponse(1, regs))
	c := NewClient(port, 1)

	got, err := c.ReadInputRegisters(0, 10)
	require.NoError(t, err)
	assert.Equal(t, regs, got)
	assert.Equal(t, ReadInputRegistersRequest(1, 0, 10), port.written.Bytes())
}

func TestClientExceptionResponse(t *testing.T) {
	port := newFakePort([]byte{1, 0x84, 2, 194, 193})
	c := NewClient(port, 1)

	_, err := c.ReadInputRegisters(0, 10)
	var exc *ExceptionError
	require.True(t, errors.As(err, &exc), "got %v", err)
	assert.Equal(t, byte(0x02), exc.Code)
	assert.Contains(t, exc.Error(), "illegal data address")
}

func TestClientRejectsBadFrames(t *testing.T) {
	good := registerResponse(1, []uint16{1, 2})

	corrupt := append([]byte(nil), good...)
	corrupt[4] ^= 0x01

	tests := []struct {
		name     string
		response []byte
		want     error
	}{
		{"crc", corrupt, ErrCRC},
		{"wrong slave", registerResponse(7, []uint16{1, 2}), ErrInvalidResponse},
		{"short count", registerResponse(1, []uint16{1}), ErrInvalidResponse},
		{"truncated", good[:4], ErrTimeout},
		{"silent", nil, ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(newFakePort(tt.response), 1)
			_, err := c.ReadInputRegisters(0, 2)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

type zeroReader struct{}

func (zeroReader) Read([]byte) (int, error) { return 0, nil }

func TestReadFullStopsOnEmptyReads(t *testing.T) {
	err := readFull(zeroReader{}, make([]byte, 3))
	assert.ErrorIs(t, err, ErrTimeout)

	err = readFull(io.MultiReader(bytes.NewReader([]byte{1}), bytes.NewReader([]byte{2, 3})), make([]byte, 3))
	assert.NoError(t, err)
}

func TestClientClose(t *testing.T) {
	port := newFakePort(nil)
	c := NewClient(port, 1)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, port.closed)

	_, err := c.ReadInputRegisters(0, 10)
	assert.Error(t, err)
}

func TestInvalidQuantity(t *testing.T) {
	c := NewClient(newFakePort(nil), 1)
	_, err := c.ReadInputRegisters(0, 0)
	assert.Error(t, err)
	_, err = c.ReadInputRegisters(0, 126)
	assert.Error(t, err)
}

// meterPort answers every request with registers {n, 2, 3}, n being the
// transaction number. The first reply is cut after five bytes and the rest
// of it shows up late.
type meterPort struct {
	tx      uint16
	pending []byte
	tail    []byte
	// lateAfterEmpty releases the tail once the reader has seen that many
	// empty reads; zero holds it until the next request is written.
	lateAfterEmpty int
	empty          int
}

func (p *meterPort) Write(b []byte) (int, error) {
	if p.tail != nil && p.lateAfterEmpty == 0 {
		p.pending = append(p.pending, p.tail...)
		p.tail = nil
	}
	p.tx++
	reply := registerResponse(1, []uint16{p.tx, 2, 3})
	if p.tx == 1 {
		p.pending = append(p.pending, reply[:5]...)
		p.tail = reply[5:]
	} else {
		p.pending = append(p.pending, reply...)
	}
	return len(b), nil
}

func (p *meterPort) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		p.empty++
		if p.tail != nil && p.lateAfterEmpty > 0 && p.empty >= p.lateAfterEmpty {
			p.pending, p.tail = p.tail, nil
		}
		return 0, nil
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *meterPort) Close() error { return nil }

func TestClientResyncsAfterLateFrame(t *testing.T) {
	tests := []struct {
		name           string
		lateAfterEmpty int
	}{
		{"tail arrives after timeout", 3},
		{"tail arrives with next request", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &meterPort{lateAfterEmpty: tt.lateAfterEmpty}
			c := NewClient(port, 1)

			_, err := c.ReadInputRegisters(0, 3)
			require.ErrorIs(t, err, ErrTimeout)

			ok := 0
			for i := 2; i <= 20; i++ {
				regs, err := c.ReadInputRegisters(0, 3)
				if err != nil {
					require.Less(t, i, 4, "client did not resync: %v", err)
					continue
				}
				ok++
				assert.Equal(t, []uint16{uint16(i), 2, 3}, regs, "transaction %d returned another reply", i)
			}
			assert.GreaterOrEqual(t, ok, 17)
			assert.Empty(t, port.pending)
		})
	}
}
