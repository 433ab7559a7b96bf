// Package data reads and writes activity datasets as CSV.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"mochi/pkg/synth"
)

// Header is the column order of a dataset file.
var Header = []string{
	"Day", "Time", "Duration_minutes", "Location", "Weather",
	"People_home", "Mood", "Trigger", "Reward_given", "Activity",
}

// WriteCSV writes the header and one row per record. An absent trigger is
// written as an empty cell.
func WriteCSV(w io.Writer, records []synth.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range records {
		if err := cw.Write(toRow(r)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes records to path, replacing any existing file.
func WriteFile(path string, records []synth.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating dataset file: %w", err)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV parses a dataset. The first row must be Header. Any malformed row
// fails the whole read with its 1-based line number.
func ReadCSV(r io.Reader) ([]synth.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := checkHeader(head); err != nil {
		return nil, err
	}

	var out []synth.Record
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadFile reads a dataset from path.
func ReadFile(path string) ([]synth.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

func checkHeader(head []string) error {
	if len(head) != len(Header) {
		return fmt.Errorf("header has %d columns, want %d", len(head), len(Header))
	}
	for i := range Header {
		if head[i] != Header[i] {
			return fmt.Errorf("header column %d is %q, want %q", i+1, head[i], Header[i])
		}
	}
	return nil
}

func toRow(r synth.Record) []string {
	return []string{
		r.Day,
		strconv.FormatFloat(r.Time, 'f', 1, 64),
		strconv.Itoa(r.DurationMinutes),
		r.Location,
		r.Weather,
		strconv.Itoa(r.PeopleHome),
		r.Mood,
		r.Trigger,
		strconv.Itoa(r.RewardGiven),
		r.Activity,
	}
}

func fromRow(row []string) (synth.Record, error) {
	var rec synth.Record
	if synth.DayIndex(row[0]) == 0 {
		return rec, fmt.Errorf("unknown day %q", row[0])
	}
	t, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return rec, fmt.Errorf("Time: %w", err)
	}
	if t < 0 || t >= 24 {
		return rec, fmt.Errorf("Time %v outside [0,24)", t)
	}
	dur, err := strconv.Atoi(row[2])
	if err != nil {
		return rec, fmt.Errorf("Duration_minutes: %w", err)
	}
	people, err := strconv.Atoi(row[5])
	if err != nil {
		return rec, fmt.Errorf("People_home: %w", err)
	}
	reward, err := strconv.Atoi(row[8])
	if err != nil {
		return rec, fmt.Errorf("Reward_given: %w", err)
	}
	if row[9] == "" {
		return rec, fmt.Errorf("Activity is empty")
	}
	return synth.Record{
		Day:             row[0],
		Time:            t,
		DurationMinutes: dur,
		Location:        row[3],
		Weather:         row[4],
		PeopleHome:      people,
		Mood:            row[6],
		Trigger:         row[7],
		RewardGiven:     reward,
		Activity:        row[9],
	}, nil
}
