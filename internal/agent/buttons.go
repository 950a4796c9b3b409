// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/postpilot-ai/postpilot/internal/guardian"
)

// ButtonConfig is a deterministic menu item surfaced to the client.
// Value is the literal text replayed into the conversation exactly as
// if the user had typed it. Buttons are a derived view, never persisted.
type ButtonConfig struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// detector is one (predicate, builder) pair in the priority cascade.
// Detectors are pure: they inspect the final text and guardian state
// and never cause side effects.
type detector struct {
	name  string
	match func(text string, st *guardian.State) bool
	build func(text string, st *guardian.State) []ButtonConfig
}

// DetectButtons evaluates the ordered detector cascade against the
// model's final text and the terminal guardian state. The first match
// wins; nil means free text is the only affordance.
func DetectButtons(text string, st *guardian.State) []ButtonConfig {
	for _, d := range detectors {
		if d.match(text, st) {
			return d.build(text, st)
		}
	}
	return nil
}

var (
	rePlanApproval    = regexp.MustCompile(`(?i)(te gusta|apruebas|qué te parece|que te parece|te parece bien).{0,40}plan`)
	reContentApproval = regexp.MustCompile(`(?i)(te gusta|apruebas|qué te parece|que te parece|te parece bien).{0,40}(post|texto|contenido|borrador|copy)`)
	reImageApproval   = regexp.MustCompile(`(?i)(te gusta|apruebas|qué te parece|que te parece).{0,40}(imagen|foto|ilustración|ilustracion)`)
	rePublishSchedule = regexp.MustCompile(`(?i)(publicar(lo)? ahora|ahora mismo).{0,60}(programar|más tarde|mas tarde|agendar)|` +
		`(programar|agendar).{0,60}publicar(lo)? ahora`)
	reImageOffer = regexp.MustCompile(`(?i)(quieres|te gustaría|te gustaria|deseas).{0,50}(imagen|foto|ilustración|ilustracion)`)
	reNumbered   = regexp.MustCompile(`(?m)^\s*(\d+)[\.\)]\s+(.+)$`)
	reQuantity   = regexp.MustCompile(`(?i)¿?\s*(\d+)\s+o\s+(\d+)\s+(posts|publicaciones|ideas)`)
	reNextPost   = regexp.MustCompile(`(?i)(seguimos|continuamos|pasamos).{0,40}(siguiente|próximo|proximo)\s+(post|publicación|publicacion)`)
	reConnect    = regexp.MustCompile(`(?i)(conectar|vincular|enlazar).{0,40}(cuenta|instagram|facebook|tiktok|redes)`)
	reBizType    = regexp.MustCompile(`(?i)(qué|que) tipo de negocio`)
	reAudience   = regexp.MustCompile(`(?i)(quién|quien|a qué público|a que publico).{0,40}(cliente|público|publico|audiencia)`)
	reTone       = regexp.MustCompile(`(?i)(qué|que) tono.{0,40}(prefieres|quieres|usar)`)
	reFrequency  = regexp.MustCompile(`(?i)(con qué frecuencia|con que frecuencia|cuántas veces|cuantas veces).{0,40}(publicar|postear|semana)`)
	reGoal       = regexp.MustCompile(`(?i)(cuál|cual) es.{0,30}(objetivo|meta).{0,40}(redes|marketing|negocio)`)
)

var detectors = []detector{
	{
		// 1. State says an image was just generated: approval affordances.
		name: "image_generated",
		match: func(_ string, st *guardian.State) bool {
			return st != nil && st.Stage == guardian.StageImageGenerated && len(st.LastImageURLs) > 0
		},
		build: func(_ string, _ *guardian.State) []ButtonConfig {
			return []ButtonConfig{
				{ID: "approve_image", Label: "Me encanta, usarla", Value: "Me encanta la imagen, usémosla."},
				{ID: "regenerate_image", Label: "Probar otra imagen", Value: "Genera otra imagen, por favor."},
				{ID: "publish_no_image", Label: "Publicar sin imagen", Value: "Prefiero publicar sin imagen."},
			}
		},
	},
	{
		// 2. Plan-level approval question in text.
		name: "plan_approval",
		match: func(text string, _ *guardian.State) bool {
			return rePlanApproval.MatchString(text)
		},
		build: func(_ string, _ *guardian.State) []ButtonConfig {
			return []ButtonConfig{
				{ID: "approve_plan", Label: "Me gusta el plan", Value: "Me gusta el plan, sigamos."},
				{ID: "change_plan", Label: "Quiero cambios", Value: "Quiero cambiar algunas cosas del plan."},
			}
		},
	},
	{
		// 3. Content-level approval question in text.
		name: "content_approval",
		match: func(text string, _ *guardian.State) bool {
			return reContentApproval.MatchString(text)
		},
		build: func(_ string, _ *guardian.State) []ButtonConfig {
			return []ButtonConfig{
				{ID: "approve_text", Label: "Aprobar texto", Value: "Apruebo el texto, está perfecto."},
				{ID: "change_text", Label: "Pedir cambios", Value: "Quiero ajustar el texto antes de seguir."},
			}
		},
	},
	{
		// 4. Image approval phrased in text (state missed it).
		name: "image_approval_text",
		match: func(text string, _ *guardian.State) bool {
			return reImageApproval.MatchString(text)
		},
		build: func(_ string, _ *guardian.State) []ButtonConfig {
			return []ButtonConfig{
				{ID: "approve_image", Label: "Aprobar imagen", Value: "Apruebo la imagen."},
				{ID: "regenerate_image", Label: "Regenerar", Value: "Genera otra imagen, por favor."},
				{ID: "skip_image", Label: "Sin imagen", Value: "Mejor sin imagen."},
			}
		},
	},
	{
		// 5. Publish now vs schedule question.
		name: "publish_or_schedule",
		match: func(text string, _ *guardian.State) bool {
			return rePublishSchedule.MatchString(text)
		},
		build: func(_ string, _ *guardian.State) []ButtonConfig {
			return []ButtonConfig{
				{ID: "publish_now", Label: "Publicar ahora", Value: "Publícalo ahora."},
				{ID: "schedule", Label: "Programar", Value: "Prefiero programarlo para más tarde."},
			}
		},
	},
	{
		// 6. Model offers to generate an image.
		name: "image_offered",
		match: func(text string, _ *guardian.State) bool {
			return reImageOffer.MatchString(text)
		},
		build: func(_ string, _ *guardian.State) []ButtonConfig {
			return []ButtonConfig{
				{ID: "want_image", Label: "Sí, con imagen", Value: "Sí, genera una imagen para el post."},
				{ID: "no_image", Label: "No, sin imagen", Value: "No, publiquemos sin imagen."},
			}
		},
	},
	{
		// 7. Numbered list of 2+ items: one button per item plus escape.
		name: "numbered_list",
		match: func(text string, _ *guardian.State) bool {
			return len(reNumbered.FindAllStringSubmatch(text, -1)) >= 2
		},
		build: func(text string, _ *guardian.State) []ButtonConfig {
			items := reNumbered.FindAllStringSubmatch(text, -1)
			buttons := make([]ButtonConfig, 0, len(items)+1)
			for _, item := range items {
				label := strings.TrimSpace(item[2])
				if len(label) > 60 {
					label = label[:57] + "..."
				}
				buttons = append(buttons, ButtonConfig{
					ID:    "option_" + item[1],
					Label: fmt.Sprintf("%s. %s", item[1], label),
					Value: fmt.Sprintf("Elijo la opción %s.", item[1]),
				})
			}
			buttons = append(buttons, ButtonConfig{
				ID:    "other_option",
				Label: "Otra idea",
				Value: "Ninguna de esas, tengo otra idea.",
			})
			return buttons
		},
	},
	{
		// 8. Quantity question, e.g. "¿10 o 15 posts?".
		name: "quantity_question",
		match: func(text string, _ *guardian.State) bool {
			return reQuantity.MatchString(text)
		},
		build: func(text string, _ *guardian.State) []ButtonConfig {
			m := reQuantity.FindStringSubmatch(text)
			return []ButtonConfig{
				{ID: "qty_" + m[1], Label: m[1] + " " + m[3], Value: "Quiero " + m[1] + "."},
				{ID: "qty_" + m[2], Label: m[2] + " " + m[3], Value: "Quiero " + m[2] + "."},
			}
		},
	},
	{
		// 9. Continue-to-next-post prompt.
		name: "next_post",
		match: func(text string, _ *guardian.State) bool {
			return reNextPost.MatchString(text)
		},
		build: func(_ string, _ *guardian.State) []ButtonConfig {
			return []ButtonConfig{
				{ID: "continue_next", Label: "Siguiente post", Value: "Sí, sigamos con el siguiente post."},
				{ID: "finish_today", Label: "Terminar por hoy", Value: "Terminemos por hoy."},
			}
		},
	},
	{
		// 10. Platform connection offer.
		name: "connect_platform",
		match: func(text string, _ *guardian.State) bool {
			return reConnect.MatchString(text)
		},
		build: func(_ string, _ *guardian.State) []ButtonConfig {
			return []ButtonConfig{
				{ID: "connect_account", Label: "Conectar cuenta", Value: "Sí, quiero conectar mi cuenta."},
				{ID: "skip_connect", Label: "Más tarde", Value: "Lo haré más tarde."},
			}
		},
	},
	{
		// 11-15. Onboarding interview questions with fixed option sets.
		name: "business_type",
		match: func(text string, _ *guardian.State) bool {
			return reBizType.MatchString(text)
		},
		build: func(_ string, _ *guardian.State) []ButtonConfig {
			return []ButtonConfig{
				{ID: "biz_restaurant", Label: "Restaurante / café", Value: "Tengo un restaurante o café."},
				{ID: "biz_retail", Label: "Tienda", Value: "Tengo una tienda."},
				{ID: "biz_services", Label: "Servicios", Value: "Ofrezco servicios."},
				{ID: "biz_other", Label: "Otro", Value: "Es otro tipo de negocio."},
			}
		},
	},
	{
		name: "audience",
		match: func(text string, _ *guardian.State) bool {
			return reAudience.MatchString(text)
		},
		build: func(_ string, _ *guardian.State) []ButtonConfig {
			return []ButtonConfig{
				{ID: "aud_local", Label: "Clientes locales", Value: "Mis clientes son del barrio."},
				{ID: "aud_young", Label: "Público joven", Value: "Busco un público joven."},
				{ID: "aud_families", Label: "Familias", Value: "Me dirijo a familias."},
				{ID: "aud_pro", Label: "Profesionales", Value: "Mi público son profesionales."},
			}
		},
	},
	{
		name: "tone",
		match: func(text string, _ *guardian.State) bool {
			return reTone.MatchString(text)
		},
		build: func(_ string, _ *guardian.State) []ButtonConfig {
			return []ButtonConfig{
				{ID: "tone_close", Label: "Cercano y divertido", Value: "Prefiero un tono cercano y divertido."},
				{ID: "tone_pro", Label: "Profesional", Value: "Prefiero un tono profesional."},
				{ID: "tone_inspiring", Label: "Inspirador", Value: "Me gusta un tono inspirador."},
			}
		},
	},
	{
		name: "frequency",
		match: func(text string, _ *guardian.State) bool {
			return reFrequency.MatchString(text)
		},
		build: func(_ string, _ *guardian.State) []ButtonConfig {
			return []ButtonConfig{
				{ID: "freq_daily", Label: "Todos los días", Value: "Quiero publicar todos los días."},
				{ID: "freq_3week", Label: "3 veces por semana", Value: "Unas 3 veces por semana."},
				{ID: "freq_weekly", Label: "1 vez por semana", Value: "Con una vez por semana me vale."},
			}
		},
	},
	{
		name: "goal",
		match: func(text string, _ *guardian.State) bool {
			return reGoal.MatchString(text)
		},
		build: func(_ string, _ *guardian.State) []ButtonConfig {
			return []ButtonConfig{
				{ID: "goal_sales", Label: "Vender más", Value: "Mi objetivo es vender más."},
				{ID: "goal_awareness", Label: "Darme a conocer", Value: "Quiero darme a conocer."},
				{ID: "goal_community", Label: "Crear comunidad", Value: "Quiero crear comunidad."},
			}
		},
	},
}
