package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"

	"usdo-ledger/core/model"
)

type BlockchainClient struct {
	client *ethclient.Client
}

func NewBlockchainClient(ethURL string) (*BlockchainClient, error) {
	client, err := ethclient.Dial(ethURL)
	if err != nil {
		return nil, err
	}
	return &BlockchainClient{client: client}, nil
}

func (bc *BlockchainClient) Close() {
	bc.client.Close()
}

// LatestHead returns number and timestamp of the newest block.
func (bc *BlockchainClient) LatestHead(ctx context.Context) (model.ChainHead, error) {
	header, err := bc.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return model.ChainHead{}, err
	}
	return model.ChainHead{Number: header.Number.Uint64(), Timestamp: header.Time}, nil
}

// CallContract runs a read-only call against the latest block.
func (bc *BlockchainClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return bc.client.CallContract(ctx, call, blockNumber)
}
