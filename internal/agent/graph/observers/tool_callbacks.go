package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/tool"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/lofty-concierge/server/pkg/logger"
)

// newToolHandler logs tool lifecycle events.
func newToolHandler() *callbackHelper.ToolCallbackHandler {
	return &callbackHelper.ToolCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *tool.CallbackInput) context.Context {
			var args string
			if input != nil {
				args = input.ArgumentsInJSON
			}
			logx.Debug().Str("tool_name", info.Name).Int("args_bytes", len(args)).Msg("tool start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *tool.CallbackOutput) context.Context {
			var resp string
			if output != nil {
				resp = output.Response
			}
			logx.Debug().Str("tool_name", info.Name).Str("result", preview(resp)).Msg("tool end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Error().Err(err).Str("tool_name", info.Name).Msg("tool execution failed")
			return ctx
		},
	}
}
