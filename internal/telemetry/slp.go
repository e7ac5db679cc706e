package telemetry

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
	"unicode/utf16"
)

// Server list ping. Two generations of the protocol exist: a
// single-byte legacy probe answered with a UTF-16BE kick string, and
// the modern handshake/status exchange carrying JSON. Protocol 47
// (version 1.8) is the cutoff.

const modernProtocolCutoff = 47

// Pinger queries player counts from running servers.
type Pinger struct {
	Timeout time.Duration
}

func (p Pinger) timeout() time.Duration {
	if p.Timeout <= 0 {
		return 5 * time.Second
	}
	return p.Timeout
}

// OnlinePlayers connects to host:port and returns the current player
// count, choosing the ping generation from the world's game version.
func (p Pinger) OnlinePlayers(host string, port int, version string) (int, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, p.timeout())
	if err != nil {
		return 0, fmt.Errorf("telemetry: dial %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(p.timeout()))

	protocol := ProtocolVersion(version)
	if protocol < modernProtocolCutoff {
		return LegacyPing(conn)
	}
	return ModernPing(conn, host, port, protocol)
}

// LegacyPing performs the pre-1.8 probe: 0xFE out, a 0xFF kick packet
// back whose payload is a '§'-separated string with the online count in
// the second field.
func LegacyPing(rw io.ReadWriter) (int, error) {
	if _, err := rw.Write([]byte{0xFE}); err != nil {
		return 0, fmt.Errorf("telemetry: legacy ping write: %w", err)
	}
	var head [3]byte
	if _, err := io.ReadFull(rw, head[:]); err != nil {
		return 0, fmt.Errorf("telemetry: legacy ping read: %w", err)
	}
	if head[0] != 0xFF {
		return 0, fmt.Errorf("telemetry: unexpected legacy packet id 0x%02X", head[0])
	}
	n := binary.BigEndian.Uint16(head[1:3])
	raw := make([]byte, int(n)*2)
	if _, err := io.ReadFull(rw, raw); err != nil {
		return 0, fmt.Errorf("telemetry: legacy payload: %w", err)
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(raw[i*2:])
	}
	parts := strings.Split(string(utf16.Decode(units)), "§")
	if len(parts) < 2 {
		return 0, fmt.Errorf("telemetry: malformed legacy payload")
	}
	var online int
	if _, err := fmt.Sscanf(parts[1], "%d", &online); err != nil {
		return 0, fmt.Errorf("telemetry: legacy player count %q: %w", parts[1], err)
	}
	return online, nil
}

type statusResponse struct {
	Players struct {
		Online int `json:"online"`
		Max    int `json:"max"`
	} `json:"players"`
}

// ModernPing performs the handshake/status exchange and reads
// players.online from the JSON status object.
func ModernPing(rw io.ReadWriter, host string, port int, protocol int) (int, error) {
	var body []byte
	body = AppendVarInt(body, 0x00) // handshake packet id
	body = AppendVarInt(body, int32(protocol))
	body = AppendVarInt(body, int32(len(host)))
	body = append(body, host...)
	body = binary.BigEndian.AppendUint16(body, uint16(port))
	body = AppendVarInt(body, 1) // next state: status

	var frame []byte
	frame = AppendVarInt(frame, int32(len(body)))
	frame = append(frame, body...)
	// status request packet: length 1, id 0x00
	frame = append(frame, 0x01, 0x00)
	if _, err := rw.Write(frame); err != nil {
		return 0, fmt.Errorf("telemetry: handshake write: %w", err)
	}

	if _, err := ReadVarInt(rw); err != nil { // response length
		return 0, fmt.Errorf("telemetry: response length: %w", err)
	}
	id, err := ReadVarInt(rw)
	if err != nil {
		return 0, fmt.Errorf("telemetry: response id: %w", err)
	}
	if id != 0x00 {
		return 0, fmt.Errorf("telemetry: unexpected status packet id 0x%02X", id)
	}
	strLen, err := ReadVarInt(rw)
	if err != nil {
		return 0, fmt.Errorf("telemetry: status length: %w", err)
	}
	payload := make([]byte, strLen)
	if _, err := io.ReadFull(rw, payload); err != nil {
		return 0, fmt.Errorf("telemetry: status payload: %w", err)
	}
	var status statusResponse
	if err := json.Unmarshal(payload, &status); err != nil {
		return 0, fmt.Errorf("telemetry: status json: %w", err)
	}
	return status.Players.Online, nil
}
