package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/HyunsooZo/signly-sub001/internal/domain"
	"github.com/HyunsooZo/signly-sub001/pkg/telemetry"
)

// PostgresContractRepository implements ContractRepository using PostgreSQL
// with pgxpool. Status transitions are protected by a version column: Save
// issues a conditional UPDATE and reports domain.ErrVersionConflict when the
// row moved underneath the caller, so racing writers never overwrite each
// other silently.
type PostgresContractRepository struct {
	pool       *pgxpool.Pool
	outboxRepo *PostgresOutboxRepository
}

// NewPostgresContractRepository creates a new PostgresContractRepository
func NewPostgresContractRepository(pool *pgxpool.Pool) *PostgresContractRepository {
	return &PostgresContractRepository{
		pool:       pool,
		outboxRepo: NewPostgresOutboxRepository(pool),
	}
}

const contractColumns = `
	id, creator_id, template_id, title, content,
	first_party_name, first_party_email, first_party_org,
	second_party_name, second_party_email, second_party_org,
	status, sign_token, expires_at, preset_type, pdf_path,
	version, created_at, updated_at
`

// Create persists a freshly created DRAFT contract
func (r *PostgresContractRepository) Create(ctx context.Context, contract *domain.Contract) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.contract.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("contract_id", contract.ID),
		attribute.String("creator_id", contract.CreatorID),
	)

	query := `
		INSERT INTO contracts (
			id, creator_id, template_id, title, content,
			first_party_name, first_party_email, first_party_org,
			second_party_name, second_party_email, second_party_org,
			status, sign_token, expires_at, preset_type, pdf_path,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19
		)
	`

	_, err := r.pool.Exec(ctx, query,
		contract.ID,
		contract.CreatorID,
		nullString(contract.TemplateID),
		contract.Title,
		contract.Content,
		contract.FirstParty.Name,
		contract.FirstParty.Email,
		nullString(contract.FirstParty.Organization),
		contract.SecondParty.Name,
		contract.SecondParty.Email,
		nullString(contract.SecondParty.Organization),
		contract.Status.String(),
		nullString(contract.SignToken),
		contract.ExpiresAt,
		nullString(contract.PresetType),
		nullString(contract.PdfPath),
		contract.Version,
		contract.CreatedAt,
		contract.UpdatedAt,
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create contract: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a contract by its id
func (r *PostgresContractRepository) GetByID(ctx context.Context, id string) (*domain.Contract, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.contract.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("contract_id", id))

	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	contract, err := r.getOne(ctx, query, id)
	if err != nil {
		if errors.Is(err, domain.ErrContractNotFound) {
			span.SetStatus(codes.Error, "not found")
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return contract, nil
}

// GetByToken retrieves a contract by its sign token. The token column has a
// unique index; this is the single point query anonymous signers come
// through.
func (r *PostgresContractRepository) GetByToken(ctx context.Context, token string) (*domain.Contract, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.contract.get_by_token")
	defer span.End()

	query := `SELECT ` + contractColumns + ` FROM contracts WHERE sign_token = $1`
	contract, err := r.getOne(ctx, query, token)
	if err != nil {
		if errors.Is(err, domain.ErrContractNotFound) {
			span.SetStatus(codes.Error, "not found")
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("contract_id", contract.ID))
	span.SetStatus(codes.Ok, "")
	return contract, nil
}

func (r *PostgresContractRepository) getOne(ctx context.Context, query string, arg any) (*domain.Contract, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	contract, err := scanContract(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrContractNotFound
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}

	signatures, err := r.loadSignatures(ctx, contract.ID)
	if err != nil {
		return nil, err
	}
	contract.Signatures = signatures
	return contract, nil
}

// Save persists a mutated contract using a version check. New signatures and
// the given audit events are written in the same transaction; the unique
// (contract_id, signer_email) constraint backs the duplicate guard at the
// storage level as well.
func (r *PostgresContractRepository) Save(ctx context.Context, contract *domain.Contract, events ...*domain.AuditEvent) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.contract.save")
	defer span.End()

	span.SetAttributes(
		attribute.String("contract_id", contract.ID),
		attribute.String("status", contract.Status.String()),
		attribute.Int64("version", contract.Version),
	)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE contracts SET
			title = $3,
			content = $4,
			status = $5,
			sign_token = $6,
			expires_at = $7,
			pdf_path = $8,
			version = version + 1,
			updated_at = $9
		WHERE id = $1 AND version = $2
	`

	result, err := tx.Exec(ctx, query,
		contract.ID,
		contract.Version,
		contract.Title,
		contract.Content,
		contract.Status.String(),
		nullString(contract.SignToken),
		contract.ExpiresAt,
		nullString(contract.PdfPath),
		contract.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save contract: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM contracts WHERE id = $1)", contract.ID).Scan(&exists); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to check contract existence: %w", err)
		}
		if !exists {
			span.SetStatus(codes.Error, "not found")
			return domain.ErrContractNotFound
		}
		span.SetStatus(codes.Error, "version conflict")
		return domain.ErrVersionConflict
	}

	for _, sig := range contract.Signatures {
		if err := r.insertSignatureTx(ctx, tx, contract.ID, sig); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	for _, ev := range events {
		if ev == nil {
			continue
		}
		msg, err := domain.ContractOutboxEvent(ev)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to build outbox event: %w", err)
		}
		if err := r.outboxRepo.CreateTx(ctx, tx, msg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	contract.Version++
	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *PostgresContractRepository) insertSignatureTx(ctx context.Context, tx pgx.Tx, contractID string, sig domain.Signature) error {
	// Signatures are append-only; re-inserting an already persisted one is a
	// no-op thanks to the uniqueness constraint.
	query := `
		INSERT INTO contract_signatures (
			contract_id, signer_email, signer_name, artifact_ref,
			signed_at, ip_address, device_info
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (contract_id, signer_email) DO NOTHING
	`

	_, err := tx.Exec(ctx, query,
		contractID,
		sig.SignerEmail,
		sig.SignerName,
		sig.ArtifactRef,
		sig.SignedAt,
		sig.IPAddress,
		nullString(sig.DeviceInfo),
	)
	if err != nil {
		return fmt.Errorf("failed to insert signature: %w", err)
	}
	return nil
}

// Delete deletes a contract by its id
func (r *PostgresContractRepository) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.contract.delete")
	defer span.End()

	span.SetAttributes(attribute.String("contract_id", id))

	result, err := r.pool.Exec(ctx, `DELETE FROM contracts WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to delete contract: %w", err)
	}

	if result.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrContractNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByCreator lists contracts owned by a user, newest first
func (r *PostgresContractRepository) GetByCreator(ctx context.Context, creatorID string, limit, offset int) ([]*domain.Contract, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.contract.get_by_creator")
	defer span.End()

	span.SetAttributes(
		attribute.String("creator_id", creatorID),
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)

	query := `SELECT ` + contractColumns + `
		FROM contracts
		WHERE creator_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	contracts, err := r.list(ctx, query, creatorID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(contracts)))
	span.SetStatus(codes.Ok, "")
	return contracts, nil
}

// GetByPartyEmail lists contracts where the email belongs to either party
func (r *PostgresContractRepository) GetByPartyEmail(ctx context.Context, email string, status domain.ContractStatus, limit, offset int) ([]*domain.Contract, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.contract.get_by_party")
	defer span.End()

	span.SetAttributes(
		attribute.Int("limit", limit),
		attribute.Int("offset", offset),
	)

	var (
		contracts []*domain.Contract
		err       error
	)
	if status == "" {
		query := `SELECT ` + contractColumns + `
			FROM contracts
			WHERE first_party_email = $1 OR second_party_email = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`
		contracts, err = r.list(ctx, query, email, limit, offset)
	} else {
		span.SetAttributes(attribute.String("status", status.String()))
		query := `SELECT ` + contractColumns + `
			FROM contracts
			WHERE (first_party_email = $1 OR second_party_email = $1) AND status = $2
			ORDER BY created_at DESC
			LIMIT $3 OFFSET $4`
		contracts, err = r.list(ctx, query, email, status.String(), limit, offset)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(contracts)))
	span.SetStatus(codes.Ok, "")
	return contracts, nil
}

// GetExpired returns PENDING contracts past their deadline, capped at limit
func (r *PostgresContractRepository) GetExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Contract, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.contract.get_expired")
	defer span.End()

	span.SetAttributes(attribute.Int("limit", limit))

	query := `SELECT ` + contractColumns + `
		FROM contracts
		WHERE status = 'pending'
			AND expires_at IS NOT NULL
			AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2`

	contracts, err := r.list(ctx, query, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(contracts)))
	span.SetStatus(codes.Ok, "")
	return contracts, nil
}

func (r *PostgresContractRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Contract, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*domain.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		contracts = append(contracts, contract)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contracts: %w", err)
	}

	for _, contract := range contracts {
		signatures, err := r.loadSignatures(ctx, contract.ID)
		if err != nil {
			return nil, err
		}
		contract.Signatures = signatures
	}
	return contracts, nil
}

func (r *PostgresContractRepository) loadSignatures(ctx context.Context, contractID string) ([]domain.Signature, error) {
	query := `
		SELECT signer_email, signer_name, artifact_ref, signed_at, ip_address, device_info
		FROM contract_signatures
		WHERE contract_id = $1
		ORDER BY signed_at ASC
	`

	rows, err := r.pool.Query(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to query signatures: %w", err)
	}
	defer rows.Close()

	var signatures []domain.Signature
	for rows.Next() {
		var (
			signerEmail string
			signerName  string
			artifactRef string
			signedAt    time.Time
			ipAddress   string
			deviceInfo  *string
		)
		if err := rows.Scan(&signerEmail, &signerName, &artifactRef, &signedAt, &ipAddress, &deviceInfo); err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		device := ""
		if deviceInfo != nil {
			device = *deviceInfo
		}
		signatures = append(signatures, domain.RestoreSignature(signerEmail, signerName, artifactRef, signedAt, ipAddress, device))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signatures: %w", err)
	}
	return signatures, nil
}

// scanContract maps one row onto the aggregate through its Restore factory;
// signatures are loaded separately.
func scanContract(row pgx.Row) (*domain.Contract, error) {
	var (
		id, creatorID, title, content       string
		templateID, signToken               *string
		firstName, firstEmail               string
		firstOrg                            *string
		secondName, secondEmail             string
		secondOrg                           *string
		status                              string
		expiresAt                           *time.Time
		presetType, pdfPath                 *string
		version                             int64
		createdAt, updatedAt                time.Time
	)

	err := row.Scan(
		&id, &creatorID, &templateID, &title, &content,
		&firstName, &firstEmail, &firstOrg,
		&secondName, &secondEmail, &secondOrg,
		&status, &signToken, &expiresAt, &presetType, &pdfPath,
		&version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	first := domain.PartyInfo{Name: firstName, Email: firstEmail, Organization: derefString(firstOrg)}
	second := domain.PartyInfo{Name: secondName, Email: secondEmail, Organization: derefString(secondOrg)}

	return domain.Restore(
		id, creatorID, derefString(templateID), title, content,
		first, second,
		domain.ContractStatus(status),
		nil,
		derefString(signToken),
		expiresAt,
		derefString(presetType), derefString(pdfPath),
		version,
		createdAt, updatedAt,
	), nil
}

// Helper function to convert empty string to nil pointer
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Ensure PostgresContractRepository implements ContractRepository
var _ ContractRepository = (*PostgresContractRepository)(nil)
