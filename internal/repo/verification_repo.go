package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/barbartender/bartender/internal/model"
	"github.com/barbartender/bartender/internal/pkg/dbutil"
	appErr "github.com/barbartender/bartender/internal/pkg/errors"
)

const verificationTable = "verification_codes"

var verificationFields = []string{"id", "email", "username", "password_hash", "code_hash", "ctime", "expires_at"}

// VerificationRepo keeps at most one row per email; the unique index on
// email backs that up if two replaces race.
type VerificationRepo struct {
	sqlBase
}

func NewVerificationRepo(db *sql.DB, driver string) *VerificationRepo {
	return &VerificationRepo{sqlBase{db: db, driver: driver}}
}

// Replace drops every code for the email and inserts code, in one transaction.
func (r *VerificationRepo) Replace(ctx context.Context, code *model.VerificationCode) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sqlStr, args, err := builder.BuildDelete(verificationTable, map[string]interface{}{"email": code.Email})
	if err != nil {
		return err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	if _, err = tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return err
	}

	data := map[string]interface{}{
		"id":            code.ID,
		"email":         code.Email,
		"username":      code.Username,
		"password_hash": code.PasswordHash,
		"code_hash":     code.CodeHash,
		"ctime":         code.Ctime,
		"expires_at":    code.ExpiresAt,
	}
	sqlStr, args, err = builder.BuildInsert(verificationTable, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	if _, err = tx.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			err = appErr.ErrConflict
		}
		return err
	}
	return tx.Commit()
}

func (r *VerificationRepo) GetByEmail(ctx context.Context, email string) (*model.VerificationCode, error) {
	where := map[string]interface{}{"email": email, "_orderby": "ctime desc", "_limit": []uint{0, 1}}
	sqlStr, args, err := builder.BuildSelect(verificationTable, where, verificationFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, appErr.ErrNotFound
	}
	var code model.VerificationCode
	if err := rows.Scan(&code.ID, &code.Email, &code.Username, &code.PasswordHash, &code.CodeHash, &code.Ctime, &code.ExpiresAt); err != nil {
		return nil, err
	}
	return &code, nil
}

// Remove deletes the row by id and reports whether this call removed it.
// Concurrent callers holding the same row see false.
func (r *VerificationRepo) Remove(ctx context.Context, code *model.VerificationCode) (bool, error) {
	sqlStr, args, err := builder.BuildDelete(verificationTable, map[string]interface{}{"id": code.ID})
	if err != nil {
		return false, err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *VerificationRepo) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete(verificationTable, map[string]interface{}{"expires_at <": now})
	if err != nil {
		return 0, err
	}
	sqlStr, args = r.finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
