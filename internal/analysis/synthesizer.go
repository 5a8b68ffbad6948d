package analysis

import "context"

// Synthesizer はプロンプトからナラティブを生成する外部サービスの抽象です。
// 実装はタイムアウトを内部で管理し、空の応答はエラーとして返します。
type Synthesizer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
