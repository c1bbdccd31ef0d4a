package domain

import "encoding/json"

// FrontierEntry is one pending fetch on a job's frontier queue.
type FrontierEntry struct {
	URL       string `json:"url"`
	Depth     int    `json:"depth"`
	ParentURL string `json:"parent_url,omitempty"`
}

// EncodeFrontierEntry serializes an entry for the KV queue.
func EncodeFrontierEntry(entry FrontierEntry) (string, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return "", WrapError(KindFatal, "encode frontier entry", err)
	}

	return string(data), nil
}

// DecodeFrontierEntry deserializes a queued entry.
func DecodeFrontierEntry(data string) (FrontierEntry, error) {
	var entry FrontierEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return FrontierEntry{}, WrapError(KindFatal, "decode frontier entry", err)
	}

	return entry, nil
}
