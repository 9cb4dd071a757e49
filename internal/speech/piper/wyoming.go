package piper

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// event is one Wyoming protocol message. On the wire it is framed as
//
//	<json_length> <payload_length>\n
//	<json>\n
//	<payload>
type event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func writeEvent(w io.Writer, ev event, payload []byte) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", ev.Type, err)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", len(body), len(payload))
	bw.Write(body)
	bw.WriteByte('\n')
	bw.Write(payload)
	return bw.Flush()
}

func readEvent(r *bufio.Reader) (event, []byte, error) {
	header, err := r.ReadString('\n')
	if err != nil {
		return event{}, nil, fmt.Errorf("reading header: %w", err)
	}

	fields := strings.Fields(header)
	if len(fields) != 2 {
		return event{}, nil, fmt.Errorf("invalid wyoming header %q", strings.TrimSpace(header))
	}
	bodyLen, err := strconv.Atoi(fields[0])
	if err != nil || bodyLen < 0 {
		return event{}, nil, fmt.Errorf("invalid json length %q", fields[0])
	}
	payloadLen, err := strconv.Atoi(fields[1])
	if err != nil || payloadLen < 0 {
		return event{}, nil, fmt.Errorf("invalid payload length %q", fields[1])
	}

	// JSON body plus its trailing newline.
	body := make([]byte, bodyLen+1)
	if _, err := io.ReadFull(r, body); err != nil {
		return event{}, nil, fmt.Errorf("reading json: %w", err)
	}

	var ev event
	if err := json.Unmarshal(body[:bodyLen], &ev); err != nil {
		return event{}, nil, fmt.Errorf("decoding event: %w", err)
	}

	if payloadLen == 0 {
		return ev, nil, nil
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return event{}, nil, fmt.Errorf("reading payload: %w", err)
	}
	return ev, payload, nil
}

// intField reads a numeric field from event data, returning def when absent.
func intField(data map[string]any, key string, def int) int {
	if v, ok := data[key].(float64); ok {
		return int(v)
	}
	return def
}
