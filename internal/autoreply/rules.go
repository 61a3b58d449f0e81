package autoreply

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads an ordered rule list from a YAML file. Order in the
// file is evaluation order.
func LoadRules(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var f rulesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	for i, r := range f.Rules {
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("rule %d (%s): no keywords", i, r.Name)
		}
		if r.Template == "" && r.Reply == "" {
			return nil, fmt.Errorf("rule %d (%s): neither template nor reply set", i, r.Name)
		}
	}
	return f.Rules, nil
}

// DefaultRules are the studio's built-in commands, used when no rules
// file is configured.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "agendamento",
			Keywords: []string{"agendar", "agendamento"},
			Reply: "Olá! Para agendar seu ensaio, acesse nosso site: https://jessicasantos.com/agendar\n\n" +
				"Ou me informe:\n1. Tipo de ensaio\n2. Data preferida\n3. Horário preferido",
		},
		{
			Name:     "precos",
			Keywords: []string{"preço", "preco", "valor", "quanto"},
			Reply: "📸 *Nossos Ensaios:*\n\n" +
				"• Retrato Individual - R$ 450\n" +
				"• Ensaio de Casal - R$ 650\n" +
				"• Ensaio Familiar - R$ 750\n" +
				"• Gestante - R$ 550\n" +
				"• Newborn - R$ 850\n" +
				"• Corporativo - R$ 350\n\n" +
				"Todos incluem edição e galeria online! 💕",
		},
		{
			Name:     "portfolio",
			Keywords: []string{"portfólio", "portfolio", "trabalhos"},
			Reply: "Confira meu portfólio completo em:\n📸 https://jessicasantos.com/portfolio\n\n" +
				"Também estou no Instagram: @jessicasantosfoto",
		},
	}
}
