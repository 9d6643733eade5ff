package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashBytes 计算原始字节的SHA-256摘要，用于变更检测与缓存键
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashText 计算文本内容哈希。换行统一为LF后再摘要，
// 保证编码差异不影响相同内容的哈希一致性。
func HashText(text string) string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return HashBytes([]byte(normalized))
}
