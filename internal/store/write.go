package store

import (
	"context"
	"fmt"
)

// WriteProgram records a compiled program. Programs are content-addressed:
// writing a hash that already exists is a no-op and reports inserted=false,
// and the first row (with its seq) is kept.
func (s *Store) WriteProgram(ctx context.Context, p Program) (inserted bool, err error) {
	opcodesJSON, err := marshalOpcodes(p.Opcodes)
	if err != nil {
		return false, fmt.Errorf("write program: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO programs
		(hash, name, signature, listing, opcodes, max_stack, seq, ir_version, compiler_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		p.Hash,
		p.Name,
		p.Signature,
		p.Listing,
		opcodesJSON,
		p.MaxStack,
		p.Seq,
		p.IRVersion,
		p.CompilerVersion,
	)
	if err != nil {
		return false, fmt.Errorf("write program: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write program: rows affected: %w", err)
	}
	return n > 0, nil
}

// WriteInvocation inserts an invocation record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
//
// Note: The program referenced by ProgramHash must exist (foreign key constraint).
func (s *Store) WriteInvocation(ctx context.Context, inv Invocation) error {
	result := inv.Result
	if result == "" {
		result = "null"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocations
		(id, program_hash, args, args_after, result, error_code, error_message, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		inv.ID,
		inv.ProgramHash,
		inv.Args,
		inv.ArgsAfter,
		result,
		inv.ErrorCode,
		inv.ErrorMessage,
		inv.Seq,
	)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}
	return nil
}
