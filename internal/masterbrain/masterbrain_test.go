package masterbrain

import (
	"context"
	"strings"
	"testing"

	"github.com/oak/crypto-sentinel/internal/logger"
	"github.com/oak/crypto-sentinel/internal/model"
)

type stubCaller struct {
	response string
}

func (s *stubCaller) Call(ctx context.Context, systemPrompt, userMessage, agentName string) (string, error) {
	return s.response, nil
}

type stubHistory struct {
	added []string
}

func (s *stubHistory) GetHistory(chatID string, limit int) ([]model.ChatMessage, error) {
	return nil, nil
}
func (s *stubHistory) AddMessage(chatID, role, content string) error {
	s.added = append(s.added, role+":"+content)
	return nil
}
func (s *stubHistory) CheckAndCompress(chatID string) {}

func init() {
	logger.Init(false)
}

func testRegistry() map[string]model.CapabilityDescriptor {
	return map[string]model.CapabilityDescriptor{
		"technical_analysis": {
			Name:        "technical_analysis",
			Description: "test",
			Handler: func(args map[string]any) string {
				return "technical:" + args["symbol"].(string)
			},
		},
	}
}

func TestProcessRequestDispatchesDirective(t *testing.T) {
	caller := &stubCaller{response: `好的，我来分析一下。
FUNCTION_CALL: technical_analysis(symbol="BTCUSDT")
分析完成。`}
	hist := &stubHistory{}
	brain := New(testRegistry(), caller, hist, logger.Global)

	reply := brain.ProcessRequest(context.Background(), "分析 BTC", "chat1", nil, nil, "standby")

	if !strings.Contains(reply, "technical:BTCUSDT") {
		t.Fatalf("reply = %q, want it to contain dispatched result", reply)
	}
	if len(hist.added) != 2 {
		t.Fatalf("history entries = %d, want 2 (user + assistant)", len(hist.added))
	}
}

func TestProcessRequestUnknownFunction(t *testing.T) {
	caller := &stubCaller{response: `FUNCTION_CALL: does_not_exist(symbol="BTCUSDT")`}
	brain := New(testRegistry(), caller, nil, logger.Global)

	reply := brain.ProcessRequest(context.Background(), "随便什么", "chat1", nil, nil, "standby")

	if !strings.Contains(reply, "❌ 未知的函数调用") {
		t.Fatalf("reply = %q, want unknown-function error", reply)
	}
}

func TestHeartbeatDecisionIsStandbyNoOp(t *testing.T) {
	brain := New(testRegistry(), &stubCaller{}, nil, logger.Global)
	reply := brain.HeartbeatDecision(map[string]any{"symbol": "BTCUSDT"})
	if !strings.Contains(reply, "待机") {
		t.Fatalf("reply = %q, want standby message", reply)
	}
}
