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

package database

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jerry-enebeli/runop/model"
)

// IDataSource defines the journal operations used by the runner.
type IDataSource interface {
	inclusion
	Close() error
}

type inclusion interface {
	RecordInclusion(ctx context.Context, record *model.InclusionRecord) (*model.InclusionRecord, error) // Persists a mined operation
	GetInclusion(ctx context.Context, runID string) (*model.InclusionRecord, error)                     // Retrieves a record by run ID
	GetInclusionsByIdentity(ctx context.Context, identity common.Address, limit int) ([]model.InclusionRecord, error)
}
