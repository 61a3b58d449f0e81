package database

import (
	"studio-messaging/internal/models"

	"gorm.io/gorm"
)

// defaultTemplates are the reminder bodies the studio ships with.
// Placeholders use the {{name}} syntax resolved by the renderer.
var defaultTemplates = []models.Template{
	{
		Name:        "lembrete_confirmacao",
		DisplayName: "Confirmação de Agendamento",
		Category:    models.CategoryUtility,
		BodyText: "Olá {{nome}}! 📸\n\nSeu ensaio está confirmado:\n" +
			"• Tipo: {{tipo}}\n• Data: {{data}}\n• Horário: {{horario}}\n• Valor: R$ {{valor}}\n\n" +
			"Qualquer dúvida é só chamar por aqui!",
		Variables: `["nome","tipo","data","horario","valor"]`,
		IsActive:  true,
	},
	{
		Name:        "lembrete_24h",
		DisplayName: "Lembrete 24 horas",
		Category:    models.CategoryUtility,
		BodyText: "Oi {{nome}}! Passando para lembrar do seu ensaio amanhã, " +
			"{{data}} às {{horario}}.\n\nEndereço: {{endereco}}\n\nAté lá! 💕",
		Variables: `["nome","data","horario","endereco"]`,
		IsActive:  true,
	},
	{
		Name:        "lembrete_2h",
		DisplayName: "Lembrete 2 horas",
		Category:    models.CategoryUtility,
		BodyText:    "{{nome}}, seu ensaio é hoje às {{horario}}! Estamos te esperando. 📷",
		Variables:   `["nome","horario"]`,
		IsActive:    true,
	},
}

// SeedTemplates inserts the default reminder templates when they are
// missing. Existing rows are never overwritten so local edits survive
// restarts.
func SeedTemplates(db *gorm.DB) error {
	for _, tpl := range defaultTemplates {
		var count int64
		if err := db.Model(&models.Template{}).Where("name = ?", tpl.Name).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			if err := db.Create(&tpl).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
