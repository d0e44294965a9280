package store

import (
	"context"
	"database/sql"
	"fmt"
)

const programColumns = `hash, name, signature, listing, opcodes, max_stack, seq, ir_version, compiler_version`

const invocationColumns = `id, program_hash, args, args_after, result, error_code, error_message, seq`

// ReadProgram retrieves a program by tree hash.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadProgram(ctx context.Context, hash string) (Program, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+programColumns+`
		FROM programs
		WHERE hash = ?
	`, hash)
	return scanProgram(row)
}

// ReadPrograms returns every program ordered by seq ASC, hash ASC.
// Returns an empty slice (not nil) when the log is empty.
func (s *Store) ReadPrograms(ctx context.Context) ([]Program, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+programColumns+`
		FROM programs
		ORDER BY seq ASC, hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	defer rows.Close()

	programs := []Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}
	return programs, nil
}

// ReadInvocation retrieves a single invocation by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadInvocation(ctx context.Context, id string) (Invocation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+invocationColumns+`
		FROM invocations
		WHERE id = ?
	`, id)
	return scanInvocation(row)
}

// ReadInvocations returns the invocations of one program, or of all programs
// when programHash is empty, ordered by seq ASC, id ASC.
func (s *Store) ReadInvocations(ctx context.Context, programHash string) ([]Invocation, error) {
	query := `SELECT ` + invocationColumns + ` FROM invocations`
	var args []any
	if programHash != "" {
		query += ` WHERE program_hash = ?`
		args = append(args, programHash)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	invocations := []Invocation{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return invocations, nil
}

// LastSeq returns the highest seq in the log, 0 when it is empty. A runner
// reopening a log starts its clock here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM programs
			UNION ALL
			SELECT seq FROM invocations
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProgram(row scanner) (Program, error) {
	var p Program
	var opcodesJSON string
	if err := row.Scan(
		&p.Hash,
		&p.Name,
		&p.Signature,
		&p.Listing,
		&opcodesJSON,
		&p.MaxStack,
		&p.Seq,
		&p.IRVersion,
		&p.CompilerVersion,
	); err != nil {
		if err == sql.ErrNoRows {
			return Program{}, err
		}
		return Program{}, fmt.Errorf("scan program: %w", err)
	}
	ops, err := unmarshalOpcodes(opcodesJSON)
	if err != nil {
		return Program{}, err
	}
	p.Opcodes = ops
	return p, nil
}

func scanInvocation(row scanner) (Invocation, error) {
	var inv Invocation
	if err := row.Scan(
		&inv.ID,
		&inv.ProgramHash,
		&inv.Args,
		&inv.ArgsAfter,
		&inv.Result,
		&inv.ErrorCode,
		&inv.ErrorMessage,
		&inv.Seq,
	); err != nil {
		if err == sql.ErrNoRows {
			return Invocation{}, err
		}
		return Invocation{}, fmt.Errorf("scan invocation: %w", err)
	}
	return inv, nil
}
