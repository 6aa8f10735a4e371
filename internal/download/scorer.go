package download

import (
	"fmt"
	"strings"
)

// 关键词与扩展名表
var (
	sensitiveKeywords  = []string{"confidencial", "secreto", "privado", "senha", "password", "credential"}
	piiKeywords        = []string{"cpf", "rg", "cnpj", "telefone", "email", "endereco", "address", "phone"}
	litigationKeywords = []string{"processo", "juridico", "contrato", "acordo", "lawsuit", "legal"}

	riskyExtensions = map[string]bool{
		"xlsx": true, "xls": true, "csv": true, "pdf": true,
		"doc": true, "docx": true, "zip": true, "rar": true,
	}
	dataExtensions = map[string]bool{
		"xlsx": true, "xls": true, "csv": true, "pdf": true,
	}
)

// ScoreInput 下载风险评分输入
type ScoreInput struct {
	FileName    string
	FileType    string
	IsSensitive bool
	ContainsPII bool
}

// ScoreResult 下载风险评分结果
type ScoreResult struct {
	SecurityScore   int
	LGPDScore       int
	LitigationScore int
	OverallLevel    RiskLevel
	Factors         []string
}

// Score 计算三项独立的下载风险分，各自封顶 100
// 综合等级取三项中的最高档
func Score(in ScoreInput) ScoreResult {
	name := strings.ToLower(in.FileName)
	ext := fileExtension(name, in.FileType)

	var result ScoreResult

	// 信息安全风险
	if in.IsSensitive {
		result.SecurityScore += 30
		result.Factors = append(result.Factors, "arquivo marcado como sensível")
	}
	if riskyExtensions[ext] {
		result.SecurityScore += 20
		result.Factors = append(result.Factors, fmt.Sprintf("formato de risco (%s)", ext))
	}
	if kw := firstKeyword(name, sensitiveKeywords); kw != "" {
		result.SecurityScore += 30
		result.Factors = append(result.Factors, fmt.Sprintf("nome do arquivo contém termo sensível (%s)", kw))
	}

	// LGPD 风险：敏感词与个人数据词都视为涉及个人数据的信号
	if in.ContainsPII {
		result.LGPDScore += 40
		result.Factors = append(result.Factors, "arquivo contém dados pessoais")
	}
	if kw := firstKeyword(name, piiKeywords); kw != "" {
		result.LGPDScore += 30
		result.Factors = append(result.Factors, fmt.Sprintf("nome do arquivo indica dados pessoais (%s)", kw))
	} else if kw := firstKeyword(name, sensitiveKeywords); kw != "" {
		result.LGPDScore += 30
		result.Factors = append(result.Factors, fmt.Sprintf("nome do arquivo indica conteúdo protegido (%s)", kw))
	}
	if dataExtensions[ext] {
		result.LGPDScore += 20
		result.Factors = append(result.Factors, fmt.Sprintf("formato de exportação de dados (%s)", ext))
	}

	// 诉讼风险
	if kw := firstKeyword(name, litigationKeywords); kw != "" {
		result.LitigationScore += 40
		result.Factors = append(result.Factors, fmt.Sprintf("nome do arquivo indica conteúdo jurídico (%s)", kw))
	}
	if in.IsSensitive {
		result.LitigationScore += 20
	}
	if in.ContainsPII {
		result.LitigationScore += 20
	}

	result.SecurityScore = clamp(result.SecurityScore)
	result.LGPDScore = clamp(result.LGPDScore)
	result.LitigationScore = clamp(result.LitigationScore)
	result.OverallLevel = levelFor(max3(result.SecurityScore, result.LGPDScore, result.LitigationScore))

	return result
}

// levelFor 将分数映射到风险等级
func levelFor(score int) RiskLevel {
	switch {
	case score >= 70:
		return LevelCritico
	case score >= 50:
		return LevelAlto
	case score >= 30:
		return LevelMedio
	default:
		return LevelBaixo
	}
}

func fileExtension(lowerName, fileType string) string {
	if fileType != "" {
		return strings.ToLower(strings.TrimPrefix(fileType, "."))
	}
	if idx := strings.LastIndex(lowerName, "."); idx >= 0 && idx < len(lowerName)-1 {
		return lowerName[idx+1:]
	}
	return ""
}

func firstKeyword(name string, keywords []string) string {
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return kw
		}
	}
	return ""
}

func clamp(score int) int {
	if score > 100 {
		return 100
	}
	return score
}

func max3(a, b, c int) int {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
