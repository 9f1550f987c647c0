// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/toeirei/foothold/internal/model"
)

// bunStore implements Store over a Bun DB of any supported dialect.
type bunStore struct {
	bun *bun.DB
}

func (s *bunStore) GetKnownHostKey(hostname string) (string, error) {
	ctx := context.Background()
	var kh model.KnownHostModel
	err := s.bun.NewSelect().Model(&kh).Where("hostname = ?", hostname).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return kh.Key, nil
}

func (s *bunStore) AddKnownHostKey(hostname, key string) error {
	ctx := context.Background()
	// Select-then-write instead of an upsert keeps the statement portable
	// across the three dialects.
	existing, err := s.GetKnownHostKey(hostname)
	if err != nil {
		return err
	}
	if existing == "" {
		_, err = s.bun.NewInsert().Model(&model.KnownHostModel{
			Hostname: hostname,
			Key:      key,
		}).Exec(ctx)
		return err
	}
	_, err = s.bun.NewUpdate().Model((*model.KnownHostModel)(nil)).
		Set("key = ?", key).
		Where("hostname = ?", hostname).
		Exec(ctx)
	return err
}

func (s *bunStore) LogAction(action, details string) error {
	ctx := context.Background()
	_, err := s.bun.NewInsert().Model(&model.AuditLogModel{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Details:   details,
	}).Exec(ctx)
	return err
}

func (s *bunStore) GetAllAuditLogEntries() ([]model.AuditLogModel, error) {
	ctx := context.Background()
	var entries []model.AuditLogModel
	err := s.bun.NewSelect().Model(&entries).Order("id DESC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *bunStore) Close() error {
	return s.bun.Close()
}
