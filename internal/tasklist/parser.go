package tasklist

import (
	"encoding/csv"
	"errors"
	"io"
)

// Parser reads CSV rows from tasklist.exe output incrementally.
type Parser struct {
	schema Schema
	reader *csv.Reader
}

// NewParser returns a parser for the given schema reading from r. Reads are
// pulled from r only as rows are requested.
func NewParser(r io.Reader, schema Schema) *Parser {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(schema.Columns())
	return &Parser{schema: schema, reader: cr}
}

// Next returns the next raw row, or io.EOF when the output is exhausted.
func (p *Parser) Next() (Row, error) {
	record, err := p.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			return nil, &ParseError{Line: csvErr.Line, Err: csvErr.Err}
		}
		return nil, err
	}

	cols := p.schema.Columns()
	row := make(Row, len(cols))
	for i, col := range cols {
		row[col] = record[i]
	}
	return row, nil
}

// NextTask returns the next normalized task.
func (p *Parser) NextTask() (Task, error) {
	row, err := p.Next()
	if err != nil {
		return Task{}, err
	}
	return p.schema.Normalize(row), nil
}

// ParseAll reads every row from r and normalizes it.
func ParseAll(r io.Reader, schema Schema) ([]Task, error) {
	p := NewParser(r, schema)
	tasks := []Task{}
	for {
		task, err := p.NextTask()
		if errors.Is(err, io.EOF) {
			return tasks, nil
		}
		if err != nil {
			return tasks, err
		}
		tasks = append(tasks, task)
	}
}
