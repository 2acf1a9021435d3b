// internal/ledger/rpc.go
package ledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/quarrylabs/quarry-backend/internal/config"
)

// Official SPL memo program.
const memoProgramID = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

const confirmAttempts = 10

// RPCClient talks to a Solana JSON-RPC endpoint. It implements both
// Gateway (getTransaction) and Anchor (memo transactions signed with the
// configured authority key).
type RPCClient struct {
	url        string
	httpClient *http.Client
	authority  ed25519.PrivateKey
	authPubkey string
}

func NewRPCClient(cfg config.SolanaConfig) (*RPCClient, error) {
	key, err := loadAuthorityKey(cfg.AuthorityKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load authority key: %w", err)
	}

	pub := base58.Encode(key.Public().(ed25519.PublicKey))
	logrus.WithFields(logrus.Fields{
		"rpc_url":   cfg.RPCURL,
		"authority": pub,
	}).Info("Ledger RPC client initialized")

	return &RPCClient{
		url:        cfg.RPCURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		authority:  key,
		authPubkey: pub,
	}, nil
}

func loadAuthorityKey(encoded string) (ed25519.PrivateKey, error) {
	if encoded == "" {
		// Development only; a fresh key means previously issued
		// attestations will no longer verify as issuer-signed.
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		logrus.Warn("No authority key configured, generated an ephemeral keypair")
		return key, nil
	}

	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base58 key: %w", err)
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	default:
		return nil, fmt.Errorf("invalid key length: %d bytes", len(raw))
	}
}

// AuthorityAddress returns the base58 public key used to sign anchored
// attestations.
func (c *RPCClient) AuthorityAddress() string { return c.authPubkey }

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *RPCClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc call %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

type rpcTokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount string `json:"amount"`
	} `json:"uiTokenAmount"`
}

type rpcTransactionResult struct {
	Meta *struct {
		Err               interface{}       `json:"err"`
		PreBalances       []int64           `json:"preBalances"`
		PostBalances      []int64           `json:"postBalances"`
		PreTokenBalances  []rpcTokenBalance `json:"preTokenBalances"`
		PostTokenBalances []rpcTokenBalance `json:"postTokenBalances"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []struct {
				Pubkey string `json:"pubkey"`
			} `json:"accountKeys"`
			Instructions []struct {
				Program string          `json:"program"`
				Parsed  json.RawMessage `json:"parsed"`
			} `json:"instructions"`
		} `json:"message"`
	} `json:"transaction"`
}

func (c *RPCClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result *rpcTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result == nil || result.Meta == nil {
		return nil, ErrTransactionNotFound
	}

	tx := &Transaction{
		Signature:    signature,
		PreBalances:  result.Meta.PreBalances,
		PostBalances: result.Meta.PostBalances,
	}

	if result.Meta.Err != nil {
		encoded, _ := json.Marshal(result.Meta.Err)
		tx.Err = string(encoded)
	}

	for _, key := range result.Transaction.Message.AccountKeys {
		tx.Accounts = append(tx.Accounts, key.Pubkey)
	}
	tx.PreTokenBalances = convertTokenBalances(result.Meta.PreTokenBalances)
	tx.PostTokenBalances = convertTokenBalances(result.Meta.PostTokenBalances)

	for _, inst := range result.Transaction.Message.Instructions {
		if inst.Program != "spl-memo" {
			continue
		}
		var memo string
		if err := json.Unmarshal(inst.Parsed, &memo); err == nil {
			tx.Memos = append(tx.Memos, memo)
		}
	}

	return tx, nil
}

func convertTokenBalances(in []rpcTokenBalance) []TokenBalance {
	out := make([]TokenBalance, 0, len(in))
	for _, b := range in {
		amount, _ := strconv.ParseInt(b.UITokenAmount.Amount, 10, 64)
		out = append(out, TokenBalance{
			AccountIndex: b.AccountIndex,
			Mint:         b.Mint,
			Owner:        b.Owner,
			Amount:       amount,
		})
	}
	return out
}

// WriteMemo anchors data on-chain as a single-instruction memo transaction
// signed by the authority. The returned signature is the anchoring id.
func (c *RPCClient) WriteMemo(ctx context.Context, data []byte) (string, error) {
	var blockhashResult struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	params := []interface{}{map[string]interface{}{"commitment": "confirmed"}}
	if err := c.call(ctx, "getLatestBlockhash", params, &blockhashResult); err != nil {
		return "", fmt.Errorf("failed to fetch blockhash: %w", err)
	}

	txBytes, err := c.buildMemoTransaction(blockhashResult.Value.Blockhash, data)
	if err != nil {
		return "", err
	}

	sendParams := []interface{}{
		base64.StdEncoding.EncodeToString(txBytes),
		map[string]interface{}{
			"encoding":            "base64",
			"preflightCommitment": "confirmed",
		},
	}
	var returned string
	if err := c.call(ctx, "sendTransaction", sendParams, &returned); err != nil {
		return "", fmt.Errorf("failed to send memo transaction: %w", err)
	}

	if err := c.awaitConfirmation(ctx, returned); err != nil {
		return "", err
	}

	logrus.WithField("signature", returned).Info("Memo transaction anchored")
	return returned, nil
}

func (c *RPCClient) awaitConfirmation(ctx context.Context, signature string) error {
	for i := 0; i < confirmAttempts; i++ {
		select {
		case <-ctx.Done():
			return &UnknownOutcomeError{Signature: signature, Err: ctx.Err()}
		case <-time.After(2 * time.Second):
		}

		var statusResult struct {
			Value []*struct {
				Err                interface{} `json:"err"`
				ConfirmationStatus string      `json:"confirmationStatus"`
			} `json:"value"`
		}
		params := []interface{}{[]string{signature}}
		if err := c.call(ctx, "getSignatureStatuses", params, &statusResult); err != nil {
			continue
		}
		if len(statusResult.Value) == 0 || statusResult.Value[0] == nil {
			continue
		}
		status := statusResult.Value[0]
		if status.Err != nil {
			encoded, _ := json.Marshal(status.Err)
			return fmt.Errorf("memo transaction failed on-chain: %s", encoded)
		}
		if status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized" {
			return nil
		}
	}

	return &UnknownOutcomeError{
		Signature: signature,
		Err:       fmt.Errorf("not confirmed after %d attempts", confirmAttempts),
	}
}

// buildMemoTransaction serializes a legacy transaction with one memo
// instruction: header, [authority, memo program], blockhash, instruction.
func (c *RPCClient) buildMemoTransaction(blockhash string, data []byte) ([]byte, error) {
	blockhashBytes, err := base58.Decode(blockhash)
	if err != nil || len(blockhashBytes) != 32 {
		return nil, fmt.Errorf("invalid blockhash %q", blockhash)
	}
	programBytes, err := base58.Decode(memoProgramID)
	if err != nil {
		return nil, err
	}
	authorityBytes := []byte(c.authority.Public().(ed25519.PublicKey))

	var msg []byte
	// Header: 1 signer, 0 readonly signed, 1 readonly unsigned.
	msg = append(msg, 1, 0, 1)
	msg = appendCompactU16(msg, 2)
	msg = append(msg, authorityBytes...)
	msg = append(msg, programBytes...)
	msg = append(msg, blockhashBytes...)
	msg = appendCompactU16(msg, 1) // one instruction
	msg = append(msg, 1)           // program id index
	msg = appendCompactU16(msg, 0) // no instruction accounts
	msg = appendCompactU16(msg, len(data))
	msg = append(msg, data...)

	signature := ed25519.Sign(c.authority, msg)

	var tx []byte
	tx = appendCompactU16(tx, 1) // one signature
	tx = append(tx, signature...)
	tx = append(tx, msg...)
	return tx, nil
}

func appendCompactU16(b []byte, v int) []byte {
	for {
		if v < 0x80 {
			return append(b, byte(v))
		}
		b = append(b, byte(v&0x7f)|0x80)
		v >>= 7
	}
}
