package sail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports a malformed line of `ps --format json` output.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse status line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type psPublisher struct {
	URL           string `json:"URL"`
	TargetPort    int    `json:"TargetPort"`
	PublishedPort int    `json:"PublishedPort"`
	Protocol      string `json:"Protocol"`
}

type psRecord struct {
	Service    string        `json:"Service"`
	Name       string        `json:"Name"`
	Names      string        `json:"Names"`
	State      string        `json:"State"`
	Status     string        `json:"Status"`
	Image      string        `json:"Image"`
	Publishers []psPublisher `json:"Publishers"`
}

// ParseSnapshot parses newline-delimited JSON records into a Snapshot,
// preserving input order. Blank lines are skipped. Any malformed line fails
// the whole parse; callers must not fall back to a partial list.
//
// Older compose releases print a single JSON array instead of one object per
// line; such a line contributes all of its elements.
func ParseSnapshot(output string) (Snapshot, error) {
	snapshot := Snapshot{}
	for i, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		records, err := decodeLine([]byte(line))
		if err != nil {
			return nil, &ParseError{Line: i + 1, Err: err}
		}
		for _, record := range records {
			snapshot = append(snapshot, record.toServiceRecord())
		}
	}
	return snapshot, nil
}

func decodeLine(line []byte) ([]psRecord, error) {
	if bytes.HasPrefix(line, []byte("[")) {
		var records []psRecord
		if err := json.Unmarshal(line, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var record psRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return nil, err
	}
	return []psRecord{record}, nil
}

func (r psRecord) toServiceRecord() ServiceRecord {
	name := r.Service
	if name == "" {
		name = r.Name
	}
	if name == "" {
		name = r.Names
	}

	var ports []PortBinding
	if len(r.Publishers) > 0 {
		ports = make([]PortBinding, 0, len(r.Publishers))
		for _, p := range r.Publishers {
			ports = append(ports, PortBinding{
				URL:           p.URL,
				TargetPort:    p.TargetPort,
				PublishedPort: p.PublishedPort,
				Protocol:      p.Protocol,
			})
		}
	}

	return ServiceRecord{
		Name:     name,
		State:    r.State,
		Status:   r.Status,
		RunState: ClassifyRunState(r.Status),
		Image:    NormalizeImage(r.Image),
		Ports:    ports,
	}
}
