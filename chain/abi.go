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

package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const userOperationTuple = `{"components":[
	{"internalType":"address","name":"sender","type":"address"},
	{"internalType":"uint256","name":"nonce","type":"uint256"},
	{"internalType":"bytes","name":"initCode","type":"bytes"},
	{"internalType":"bytes","name":"callData","type":"bytes"},
	{"internalType":"uint256","name":"callGasLimit","type":"uint256"},
	{"internalType":"uint256","name":"verificationGasLimit","type":"uint256"},
	{"internalType":"uint256","name":"preVerificationGas","type":"uint256"},
	{"internalType":"uint256","name":"maxFeePerGas","type":"uint256"},
	{"internalType":"uint256","name":"maxPriorityFeePerGas","type":"uint256"},
	{"internalType":"bytes","name":"paymasterAndData","type":"bytes"},
	{"internalType":"bytes","name":"signature","type":"bytes"}]`

const entryPointJSON = `[
{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"getStakeInfo","outputs":[
	{"internalType":"uint112","name":"stake","type":"uint112"},
	{"internalType":"uint32","name":"unstakeDelaySec","type":"uint32"},
	{"internalType":"uint64","name":"withdrawTime","type":"uint64"}],"stateMutability":"view","type":"function"},
{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"addDepositTo","outputs":[],"stateMutability":"payable","type":"function"},
{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[` + userOperationTuple + `,"internalType":"struct UserOperation[]","name":"ops","type":"tuple[]"},
	{"internalType":"address payable","name":"beneficiary","type":"address"}],"name":"handleOps","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[` + userOperationTuple + `,"internalType":"struct UserOperation","name":"userOp","type":"tuple"}],"name":"getUserOpHash","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
{"anonymous":false,"inputs":[
	{"indexed":true,"internalType":"bytes32","name":"userOpHash","type":"bytes32"},
	{"indexed":true,"internalType":"address","name":"sender","type":"address"},
	{"indexed":true,"internalType":"address","name":"paymaster","type":"address"},
	{"indexed":false,"internalType":"uint256","name":"nonce","type":"uint256"},
	{"indexed":false,"internalType":"bool","name":"success","type":"bool"},
	{"indexed":false,"internalType":"uint256","name":"actualGasCost","type":"uint256"},
	{"indexed":false,"internalType":"uint256","name":"actualGasUsed","type":"uint256"}],"name":"UserOperationEvent","type":"event"},
{"anonymous":false,"inputs":[
	{"indexed":true,"internalType":"bytes32","name":"userOpHash","type":"bytes32"},
	{"indexed":true,"internalType":"address","name":"sender","type":"address"},
	{"indexed":false,"internalType":"uint256","name":"nonce","type":"uint256"},
	{"indexed":false,"internalType":"bytes","name":"revertReason","type":"bytes"}],"name":"UserOperationRevertReason","type":"event"},
{"anonymous":false,"inputs":[
	{"indexed":true,"internalType":"address","name":"account","type":"address"},
	{"indexed":false,"internalType":"uint256","name":"totalDeposit","type":"uint256"}],"name":"Deposited","type":"event"},
{"anonymous":false,"inputs":[
	{"indexed":true,"internalType":"address","name":"account","type":"address"},
	{"indexed":false,"internalType":"uint256","name":"totalStaked","type":"uint256"},
	{"indexed":false,"internalType":"uint256","name":"unstakeDelaySec","type":"uint256"}],"name":"StakeLocked","type":"event"},
{"anonymous":false,"inputs":[],"name":"BeforeExecution","type":"event"}
]`

const walletJSON = `[
{"inputs":[{"internalType":"address","name":"dest","type":"address"},{"internalType":"uint256","name":"value","type":"uint256"},{"internalType":"bytes","name":"func","type":"bytes"}],"name":"execute","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[],"name":"nonce","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"owner","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const counterJSON = `[
{"inputs":[],"name":"count","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"internalType":"address","name":"","type":"address"}],"name":"counters","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"justemit","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"anonymous":false,"inputs":[{"indexed":false,"internalType":"address","name":"sender","type":"address"}],"name":"CalledFrom","type":"event"}
]`

// Parsed ABIs of the contracts the runner talks to.
var (
	EntryPointABI = mustParse(entryPointJSON)
	WalletABI     = mustParse(walletJSON)
	CounterABI    = mustParse(counterJSON)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
