// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/ipscope/internal/i18n"
)

func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("lang", parseLanguage(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// parseLanguage picks the first supported language from an Accept-Language header such as
// "zh-TW,zh;q=0.9,en;q=0.8".
func parseLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.Split(part, ";")[0])
		switch tag {
		case "zh-TW", "zh-Hant", "zh_TW", "zh-HK":
			return "zh_TW"
		case "en", "en-US", "en-GB":
			return "en"
		}
	}
	return i18n.DefaultLang
}
