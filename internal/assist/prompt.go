package assist

import (
	"fmt"
	"strings"

	"tdr-agent/internal/langdetect"
	"tdr-agent/internal/types"
)

const englishPrompt = `You are an API query parser for a Threat Detection and Response system.
Convert the natural language query into a structured API request.

Available API endpoints:
%s

Query: "%s"

Rules:
1. Identify the most appropriate endpoint based on the query
2. Extract parameters from the query (user_id, device_id, alert_id, limit, date, etc.)
3. Return a JSON object with the following structure:
{
    "endpoint": "METHOD /path",
    "parameters": {
        "param_name": "value"
    },
    "confidence": 0.95
}

Parameter extraction rules:
- For user queries with IDs: extract user_id from patterns like "user123", "user 123"
- For device queries with IDs: extract device_id from patterns like "device123", "device 123"
- For alert queries with IDs: extract alert_id from patterns like "alert 123", "id 123"
- For limits: extract numbers from "top 5", "first 10", "5 most", etc.
- For dates: extract dates in YYYY-MM-DD format
- For summary queries: look for words like "describe", "summary", "details", "explain"

Return only valid JSON, no additional text.`

const simplifiedPrompt = `你是一个威胁检测和响应系统的API查询解析器。
将自然语言查询转换为结构化的API请求。

可用的API端点:
%s

查询: "%s"

规则:
1. 根据查询识别最合适的端点
2. 从查询中提取参数 (user_id, device_id, alert_id, limit, date, 等)
3. 返回具有以下结构的JSON对象:
{
    "endpoint": "METHOD /path",
    "parameters": {
        "param_name": "value"
    },
    "confidence": 0.95
}

参数提取规则:
- 对于有ID的用户查询: 从 "user123", "user 123" 等模式中提取 user_id
- 对于有ID的设备查询: 从 "device123", "device 123" 等模式中提取 device_id
- 对于有ID的警报查询: 从 "alert 123", "id 123" 等模式中提取 alert_id
- 对于限制: 从 "top 5", "first 10", "5 most" 等中提取数字
- 对于日期: 提取 YYYY-MM-DD 格式的日期
- 对于摘要查询: 寻找 "describe", "summary", "details", "explain" 等词汇

只返回有效的JSON，不要额外的文字。`

const traditionalPrompt = `您是一個威脅偵測和回應系統的API查詢解析器。
將自然語言查詢轉換為結構化的API請求。

可用的API端點:
%s

查詢: "%s"

規則:
1. 根據查詢識別最合適的端點
2. 從查詢中提取參數 (user_id, device_id, alert_id, limit, date, 等)
3. 返回具有以下結構的JSON物件:
{
    "endpoint": "METHOD /path",
    "parameters": {
        "param_name": "value"
    },
    "confidence": 0.95
}

參數提取規則:
- 對於有ID的使用者查詢: 從 "user123", "user 123" 等模式中提取 user_id
- 對於有ID的裝置查詢: 從 "device123", "device 123" 等模式中提取 device_id
- 對於有ID的警報查詢: 從 "alert 123", "id 123" 等模式中提取 alert_id
- 對於限制: 從 "top 5", "first 10", "5 most" 等中提取數字
- 對於日期: 提取 YYYY-MM-DD 格式的日期
- 對於摘要查詢: 尋找 "describe", "summary", "details", "explain" 等詞彙

只返回有效的JSON，不要額外的文字。`

// variant is one language rendition of the parser instructions
type variant struct {
	user   string
	system string
}

var variants = map[langdetect.Tag]variant{
	langdetect.English: {
		user:   englishPrompt,
		system: "You are a helpful API query parser. Always return valid JSON.",
	},
	langdetect.SimplifiedChinese: {
		user:   simplifiedPrompt,
		system: "你是一个有用的API查询解析器。总是返回有效的JSON。",
	},
	langdetect.TraditionalChinese: {
		user:   traditionalPrompt,
		system: "您是一個有用的API查詢解析器。總是返回有效的JSON。",
	},
}

// variantFor returns the prompt variant for lang. Languages without their
// own variant use English.
func variantFor(lang langdetect.Tag) variant {
	if v, ok := variants[lang]; ok {
		return v
	}
	return variants[langdetect.English]
}

// BuildPrompt returns the system and user messages for query
func BuildPrompt(endpoints []types.Endpoint, query string, lang langdetect.Tag) (system, user string) {
	v := variantFor(lang)
	return v.system, fmt.Sprintf(v.user, endpointContext(endpoints), query)
}

// endpointContext lists every endpoint with its summary, description and
// parameter names
func endpointContext(endpoints []types.Endpoint) string {
	var b strings.Builder
	for _, ep := range endpoints {
		fmt.Fprintf(&b, "- %s: %s\n", ep.Key(), ep.Summary)
		if ep.Description != "" {
			fmt.Fprintf(&b, "  Description: %s\n", ep.Description)
		}
		if len(ep.Parameters) > 0 {
			params := make([]string, 0, len(ep.Parameters))
			for _, p := range ep.Parameters {
				params = append(params, fmt.Sprintf("%s (%s)", p.Name, p.Type))
			}
			fmt.Fprintf(&b, "  Parameters: %s\n", strings.Join(params, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
