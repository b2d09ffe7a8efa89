package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI of the deployed parimutuel prediction market contract. The contract is
// external; only the entry points the client consumes are declared here.
const marketABIJSON = `[
  {"type":"function","name":"questionCounter","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"oracle","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getMarket","stateMutability":"view",
   "inputs":[{"name":"questionId","type":"uint256"}],
   "outputs":[
     {"name":"question","type":"string"},
     {"name":"outcomes","type":"tuple[]","components":[
       {"name":"name","type":"string"},
       {"name":"totalBetAmount","type":"uint256"}]},
     {"name":"endTime","type":"uint256"},
     {"name":"marketResolved","type":"bool"},
     {"name":"winningOutcome","type":"uint256"},
     {"name":"totalMarketPool","type":"uint256"}]},
  {"type":"function","name":"questions","stateMutability":"view",
   "inputs":[{"name":"","type":"uint256"}],
   "outputs":[
     {"name":"question","type":"string"},
     {"name":"endTime","type":"uint256"},
     {"name":"marketResolved","type":"bool"},
     {"name":"winningOutcome","type":"uint256"},
     {"name":"totalMarketPool","type":"uint256"}]},
  {"type":"function","name":"userBets","stateMutability":"view",
   "inputs":[{"name":"","type":"address"},{"name":"","type":"uint256"},{"name":"","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"hasClaimed","stateMutability":"view",
   "inputs":[{"name":"","type":"uint256"},{"name":"","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"addQuestion","stateMutability":"nonpayable",
   "inputs":[{"name":"question","type":"string"},{"name":"outcomeNames","type":"string[]"},{"name":"endTime","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"placeBet","stateMutability":"payable",
   "inputs":[{"name":"questionId","type":"uint256"},{"name":"outcomeIndex","type":"uint256"},{"name":"amount","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"resolveMarket","stateMutability":"nonpayable",
   "inputs":[{"name":"questionId","type":"uint256"},{"name":"winningOutcome","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"claimWinnings","stateMutability":"nonpayable",
   "inputs":[{"name":"questionId","type":"uint256"}],
   "outputs":[]},
  {"type":"event","name":"BetPlaced","anonymous":false,
   "inputs":[
     {"name":"questionId","type":"uint256","indexed":true},
     {"name":"user","type":"address","indexed":true},
     {"name":"outcomeIndex","type":"uint256","indexed":false},
     {"name":"amount","type":"uint256","indexed":false}]},
  {"type":"event","name":"MarketResolved","anonymous":false,
   "inputs":[
     {"name":"questionId","type":"uint256","indexed":true},
     {"name":"winningOutcome","type":"uint256","indexed":false}]},
  {"type":"event","name":"QuestionAdded","anonymous":false,
   "inputs":[
     {"name":"questionId","type":"uint256","indexed":true},
     {"name":"question","type":"string","indexed":false},
     {"name":"outcomeNames","type":"string[]","indexed":false},
     {"name":"endTime","type":"uint256","indexed":false}]},
  {"type":"event","name":"WinningsClaimed","anonymous":false,
   "inputs":[
     {"name":"questionId","type":"uint256","indexed":true},
     {"name":"user","type":"address","indexed":true},
     {"name":"amount","type":"uint256","indexed":false}]}
]`

// MarketABI is the parsed contract ABI, shared by the reader, writer and
// event indexer.
var MarketABI = mustParseABI(marketABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("chain: invalid contract ABI: " + err.Error())
	}
	return parsed
}
