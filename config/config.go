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

package config

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"log"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/runop/model"
)

const (
	DEFAULT_NETWORK           = "localhost"
	DEFAULT_RPC_URL           = "http://localhost:8545"
	DEFAULT_DEPLOYMENTS_DIR   = "./deployments"
	DEFAULT_THRESHOLD         = "0.01"
	DEFAULT_INCLUSION_TIMEOUT = 120
	DEFAULT_POLL_INTERVAL_MS  = 1000
	DEFAULT_LOCK_WAIT         = 30
)

var (
	ConfigStore atomic.Value

	hexKeyPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)
)

type NetworkConfig struct {
	Name        string `json:"name" envconfig:"RUNOP_NETWORK"`
	RPCURL      string `json:"rpc_url" envconfig:"RUNOP_RPC_URL"`
	ExplorerURL string `json:"explorer_url" envconfig:"RUNOP_EXPLORER_URL"`
}

// RelayConfig selects the submission strategy: a relay when URL is set, local
// debug execution otherwise. AA_URL is honoured for compatibility with existing setups.
type RelayConfig struct {
	URL string `json:"url" envconfig:"AA_URL"`
}

type KeysConfig struct {
	Funding string `json:"funding" envconfig:"RUNOP_FUNDING_KEY"`
	Owner   string `json:"owner" envconfig:"RUNOP_OWNER_KEY"`
}

type DeploymentsConfig struct {
	Dir        string `json:"dir" envconfig:"RUNOP_DEPLOYMENTS_DIR"`
	EntryPoint string `json:"entry_point"`
	Wallet     string `json:"wallet"`
	Target     string `json:"target"`
}

// ThresholdsConfig amounts are decimal ether strings.
type ThresholdsConfig struct {
	MinBalance string `json:"min_balance" envconfig:"RUNOP_MIN_BALANCE"`
	TopUp      string `json:"top_up" envconfig:"RUNOP_TOP_UP"`
	MinStake   string `json:"min_stake" envconfig:"RUNOP_MIN_STAKE"`
	Deposit    string `json:"deposit" envconfig:"RUNOP_DEPOSIT"`
}

type StakeConfig struct {
	AwaitDeposit bool `json:"await_deposit" envconfig:"RUNOP_AWAIT_DEPOSIT"`
}

type InclusionConfig struct {
	TimeoutSec     int `json:"timeout_sec" envconfig:"RUNOP_INCLUSION_TIMEOUT_SEC"`
	PollIntervalMs int `json:"poll_interval_ms" envconfig:"RUNOP_POLL_INTERVAL_MS"`
}

type GasConfig struct {
	CallGasLimit         uint64 `json:"call_gas_limit"`
	VerificationGasLimit uint64 `json:"verification_gas_limit"`
	PreVerificationGas   uint64 `json:"pre_verification_gas"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"RUNOP_DATA_SOURCE_DNS"`
}

// RedisConfig enables the per-identity lock. LockTTLSec is raised to cover three
// inclusion timeouts when shorter.
type RedisConfig struct {
	Dns         string `json:"dns" envconfig:"RUNOP_REDIS_DNS"`
	LockTTLSec  int    `json:"lock_ttl_sec" envconfig:"RUNOP_LOCK_TTL_SEC"`
	LockWaitSec int    `json:"lock_wait_sec" envconfig:"RUNOP_LOCK_WAIT_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"RUNOP_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type ObservabilityConfig struct {
	OtelEndpoint string `json:"otel_endpoint" envconfig:"RUNOP_OTEL_ENDPOINT"`
}

type Configuration struct {
	ProjectName   string              `json:"project_name" envconfig:"RUNOP_PROJECT_NAME"`
	Network       NetworkConfig       `json:"network"`
	Relay         RelayConfig         `json:"relay"`
	Keys          KeysConfig          `json:"keys"`
	Deployments   DeploymentsConfig   `json:"deployments"`
	Thresholds    ThresholdsConfig    `json:"thresholds"`
	Stake         StakeConfig         `json:"stake"`
	Inclusion     InclusionConfig     `json:"inclusion"`
	Gas           GasConfig           `json:"gas"`
	DataSource    DataSourceConfig    `json:"data_source"`
	Redis         RedisConfig         `json:"redis"`
	Notification  Notification        `json:"notification"`
	Observability ObservabilityConfig `json:"observability"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("runop", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return nil
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded. Create a json file called runop.json or set RUNOP_* variables")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	if cnf.ProjectName == "" {
		cnf.ProjectName = "runop"
	}

	cnf.Network.Name = strings.TrimSpace(cnf.Network.Name)
	if cnf.Network.Name == "" {
		cnf.Network.Name = DEFAULT_NETWORK
	}
	cnf.Network.RPCURL = strings.TrimSpace(cnf.Network.RPCURL)
	if cnf.Network.RPCURL == "" {
		log.Printf("Warning: RPC URL not specified. Using %s", DEFAULT_RPC_URL)
		cnf.Network.RPCURL = DEFAULT_RPC_URL
	}
	cnf.Relay.URL = strings.TrimSpace(cnf.Relay.URL)

	if cnf.Deployments.Dir == "" {
		cnf.Deployments.Dir = DEFAULT_DEPLOYMENTS_DIR
	}
	if cnf.Deployments.EntryPoint == "" {
		cnf.Deployments.EntryPoint = "EntryPoint"
	}
	if cnf.Deployments.Wallet == "" {
		cnf.Deployments.Wallet = "SimpleWallet"
	}
	if cnf.Deployments.Target == "" {
		cnf.Deployments.Target = "TestCounter"
	}

	for _, amount := range []*string{&cnf.Thresholds.MinBalance, &cnf.Thresholds.TopUp, &cnf.Thresholds.MinStake, &cnf.Thresholds.Deposit} {
		*amount = strings.TrimSpace(*amount)
		if *amount == "" {
			*amount = DEFAULT_THRESHOLD
		}
	}

	if cnf.Inclusion.TimeoutSec <= 0 {
		cnf.Inclusion.TimeoutSec = DEFAULT_INCLUSION_TIMEOUT
	}
	if cnf.Inclusion.PollIntervalMs <= 0 {
		cnf.Inclusion.PollIntervalMs = DEFAULT_POLL_INTERVAL_MS
	}
	if cnf.Redis.LockWaitSec <= 0 {
		cnf.Redis.LockWaitSec = DEFAULT_LOCK_WAIT
	}
	if floor := 3*cnf.Inclusion.TimeoutSec + 60; cnf.Redis.LockTTLSec < floor {
		cnf.Redis.LockTTLSec = floor
	}

	if cnf.Gas.CallGasLimit == 0 {
		cnf.Gas.CallGasLimit = 200_000
	}
	if cnf.Gas.VerificationGasLimit == 0 {
		cnf.Gas.VerificationGasLimit = 150_000
	}
	if cnf.Gas.PreVerificationGas == 0 {
		cnf.Gas.PreVerificationGas = 50_000
	}

	cnf.Keys.Funding = strings.TrimSpace(cnf.Keys.Funding)
	cnf.Keys.Owner = strings.TrimSpace(cnf.Keys.Owner)
	if cnf.Keys.Owner == "" {
		cnf.Keys.Owner = cnf.Keys.Funding
	}

	return cnf.validate()
}

func (cnf *Configuration) validate() error {
	if err := validation.ValidateStruct(&cnf.Network,
		validation.Field(&cnf.Network.RPCURL, validation.Required, is.URL),
		validation.Field(&cnf.Network.ExplorerURL, is.URL),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&cnf.Relay,
		validation.Field(&cnf.Relay.URL, is.URL),
	); err != nil {
		return err
	}
	if err := validation.ValidateStruct(&cnf.Keys,
		validation.Field(&cnf.Keys.Funding, validation.Required.Error("funding key is required"), validation.Match(hexKeyPattern)),
		validation.Field(&cnf.Keys.Owner, validation.Match(hexKeyPattern)),
	); err != nil {
		return err
	}
	return validation.ValidateStruct(&cnf.Thresholds,
		validation.Field(&cnf.Thresholds.MinBalance, validation.By(etherAmount)),
		validation.Field(&cnf.Thresholds.TopUp, validation.By(etherAmount)),
		validation.Field(&cnf.Thresholds.MinStake, validation.By(etherAmount)),
		validation.Field(&cnf.Thresholds.Deposit, validation.By(etherAmount)),
	)
}

func etherAmount(value interface{}) error {
	s, _ := value.(string)
	_, err := model.ParseEther(s)
	return err
}

// ModelThresholds converts the configured ether amounts to wei.
func (cnf *Configuration) ModelThresholds() (model.Thresholds, error) {
	var (
		th  model.Thresholds
		err error
	)
	if th.MinBalance, err = model.ParseEther(cnf.Thresholds.MinBalance); err != nil {
		return th, err
	}
	if th.TopUpAmount, err = model.ParseEther(cnf.Thresholds.TopUp); err != nil {
		return th, err
	}
	if th.MinStake, err = model.ParseEther(cnf.Thresholds.MinStake); err != nil {
		return th, err
	}
	if th.DepositAmount, err = model.ParseEther(cnf.Thresholds.Deposit); err != nil {
		return th, err
	}
	return th, nil
}

func (cnf *Configuration) FundingKey() (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(cnf.Keys.Funding, "0x"))
}

func (cnf *Configuration) OwnerKey() (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(cnf.Keys.Owner, "0x"))
}

func (cnf *Configuration) InclusionTimeout() time.Duration {
	return time.Duration(cnf.Inclusion.TimeoutSec) * time.Second
}

func (cnf *Configuration) PollInterval() time.Duration {
	return time.Duration(cnf.Inclusion.PollIntervalMs) * time.Millisecond
}

func (cnf *Configuration) LockTTL() time.Duration {
	return time.Duration(cnf.Redis.LockTTLSec) * time.Second
}

func (cnf *Configuration) LockWait() time.Duration {
	return time.Duration(cnf.Redis.LockWaitSec) * time.Second
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
