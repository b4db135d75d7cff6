package llm

import (
	"encoding/json"
	"fmt"

	"github.com/rcliao/guardia-ai/internal/model"
)

const analysisSystemPrompt = "Eres un médico de emergencias. Respondes únicamente con un objeto JSON válido, sin texto adicional."

const analysisTemplate = `Analiza el siguiente caso clínico de urgencias y proporciona una evaluación sindrómica estructurada.

DATOS DEL PACIENTE:
Nombre: %s | Edad: %s | Sexo: %s
MC: %s
APP: %s
Tóxicos: %s | Alergias: %s | Qx: %s

CLÍNICA:
Signos Vitales: TA %s, FC %s, FR %s, T %s, Sat %s
Síntomas (Enfermedad Actual): %s
Signos (Examen Físico): %s
Estudios: %s

Devuelve un objeto JSON con exactamente estas claves:
- "syndromeName": síndrome clínico principal
- "triageLevel": nivel de triage (Rojo, Naranja, Amarillo, Verde, Azul)
- "reasoning": razonamiento clínico breve
- "differentialDiagnoses": 3 diagnósticos diferenciales
- "immediateManagement": 5 acciones de manejo inmediato
- "recommendedExams": exámenes complementarios sugeridos
- "redFlags": signos de alarma presentes o a vigilar`

const noteTemplate = `Actúa como un médico especialista en medicina de emergencias. Redacta una Historia Clínica completa, formal y profesional basada en los siguientes datos sueltos. Usa terminología técnica precisa.

Estructura sugerida:
1. Anamnesis (Filiación, MC, AE, Antecedentes)
2. Examen Físico (Signos vitales y examen segmentario)
3. Resumen de estudios complementarios
4. Impresión Diagnóstica / Síndromes
5. Plan de Trabajo y Tratamiento

Datos crudos:
%s`

const chatTemplate = `Eres GuardiaAI, un asistente clínico experto basado en medicina basada en la evidencia.
Estás asistiendo en tiempo real sobre el siguiente paciente:
%s

Responde preguntas sobre dosis, interacciones, criterios de internación, scores (Wells, CURB-65, etc) y diagnósticos diferenciales.
Cita fuentes generales (guías de práctica clínica) cuando sea relevante. Sé conciso y directo.`

func analysisPrompt(r model.PatientRecord) string {
	return fmt.Sprintf(analysisTemplate,
		r.Name, r.Age, r.Gender,
		r.ChiefComplaint,
		r.History,
		r.HT, r.AA, r.AQX,
		r.Vitals.BP, r.Vitals.HR, r.Vitals.RR, r.Vitals.Temp, r.Vitals.Sat,
		r.Symptoms,
		r.Signs,
		r.Labs,
	)
}

func notePrompt(r model.PatientRecord) string {
	b, _ := json.MarshalIndent(r, "", "  ")
	return fmt.Sprintf(noteTemplate, b)
}

func chatSystemPrompt(r model.PatientRecord) string {
	b, _ := json.Marshal(r)
	return fmt.Sprintf(chatTemplate, b)
}
