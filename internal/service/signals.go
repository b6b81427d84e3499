package service

import (
	"regexp"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
)

// ============================================================
// SignalDetector - famílias de palavras-chave por sinal
// ============================================================

var (
	rePromo = regexp.MustCompile(`(?i)promo|desconto|cupom|oferta|barat|pre[çc]o|mais em conta|valor|quanto (custa|fica|sai)`)

	reFast = regexp.MustCompile(`(?i)r[áa]pid|urgente|pressa|agora|logo|demora|quanto tempo|j[áa] j[áa]|correndo`)

	reIndecisive = regexp.MustCompile(`(?i)n[ãa]o sei|card[áa]pio|\bmenu\b|op[çc][õo]es|sugest|sugere|recomenda|d[úu]vida|indecis|qual (a )?melhor|tanto faz`)

	reFamily = regexp.MustCompile(`(?i)fam[íi]lia|filhos|crian[çc]as|galera|pessoal|amigos|festa|anivers[áa]rio|\d+\s*pessoas`)

	reAddOns = regexp.MustCompile(`(?i)borda|refri|refrigerante|coca|guaran[áa]|adicional|combo|sobremesa|batata|por[çc][ãa]o|extra`)

	reBigSize = regexp.MustCompile(`(?i)grande|gigante|\b16\b|\b8\b`)
)

// DetectSignals extracts the behavioral signals from text.
// It is total and deterministic: empty text yields all signals false.
func DetectSignals(text string) domain.Signals {
	if text == "" {
		return domain.Signals{}
	}
	return domain.Signals{
		WantsPromo: rePromo.MatchString(text),
		WantsFast:  reFast.MatchString(text),
		Indecisive: reIndecisive.MatchString(text),
		Family:     reFamily.MatchString(text),
		AddOns:     reAddOns.MatchString(text),
		BigSize:    reBigSize.MatchString(text),
	}
}
