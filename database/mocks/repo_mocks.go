/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package mocks

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	"github.com/jerry-enebeli/runop/model"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) RecordInclusion(ctx context.Context, record *model.InclusionRecord) (*model.InclusionRecord, error) {
	args := m.Called(ctx, record)
	if rec, ok := args.Get(0).(*model.InclusionRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) GetInclusion(ctx context.Context, runID string) (*model.InclusionRecord, error) {
	args := m.Called(ctx, runID)
	if rec, ok := args.Get(0).(*model.InclusionRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) GetInclusionsByIdentity(ctx context.Context, identity common.Address, limit int) ([]model.InclusionRecord, error) {
	args := m.Called(ctx, identity, limit)
	if recs, ok := args.Get(0).([]model.InclusionRecord); ok {
		return recs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) Close() error {
	args := m.Called()
	return args.Error(0)
}
