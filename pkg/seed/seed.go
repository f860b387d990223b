// Package seed loads the UK baseline compliance register: the
// categories and legally-referenced items every new tenant starts
// with. Seeding is idempotent; re-running refreshes the guidance text
// on existing items without duplicating them.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sortedhq/sorted/pkg/model"
)

type baselineItem struct {
	Title            string
	ItemType         model.ItemType
	FrequencyType    model.FrequencyType
	EvidenceRequired bool
	RegulatoryRef    string
	LegalReference   string
	Description      string
	PlainEnglishWhy  string
	PrimaryAction    string
}

type baselineCategory struct {
	Name  string
	Items []baselineItem
}

var ukBaseline = []baselineCategory{
	{
		Name: "Fire Safety",
		Items: []baselineItem{
			{
				Title:            "Fire Risk Assessment",
				ItemType:         model.ItemLegal,
				FrequencyType:    model.FrequencyAnnual,
				EvidenceRequired: true,
				RegulatoryRef:    "RRFSO Art.9",
				LegalReference:   "Regulatory Reform (Fire Safety) Order 2005, Article 9",
				Description:      "A suitable and sufficient fire risk assessment must be carried out and reviewed regularly.",
				PlainEnglishWhy:  "You are legally required to have this. Without it you could be fined if inspected.",
				PrimaryAction:    "Create now",
			},
			{
				Title:            "Fire Extinguisher Service",
				ItemType:         model.ItemLegal,
				FrequencyType:    model.FrequencyAnnual,
				EvidenceRequired: true,
				RegulatoryRef:    "RRFSO Art.13",
				LegalReference:   "Regulatory Reform (Fire Safety) Order 2005, Article 13; BS 5306-3",
				Description:      "All fire extinguishers must be serviced annually by a competent person.",
				PlainEnglishWhy:  "If your extinguishers are not serviced they may not work in a fire. You could be liable.",
				PrimaryAction:    "Book service",
			},
			{
				Title:            "Emergency Lighting Annual Test",
				ItemType:         model.ItemLegal,
				FrequencyType:    model.FrequencyAnnual,
				EvidenceRequired: true,
				RegulatoryRef:    "BS 5266-1",
				LegalReference:   "BS 5266-1:2016 Emergency Lighting; RRFSO Article 14",
				Description:      "Full duration discharge test of emergency lighting (3 hours).",
				PlainEnglishWhy:  "Emergency lights must work during a power cut. Testing proves they do.",
				PrimaryAction:    "Book testing",
			},
			{
				Title:            "Fire Alarm System Service",
				ItemType:         model.ItemLegal,
				FrequencyType:    model.FrequencyQuarterly,
				EvidenceRequired: true,
				RegulatoryRef:    "BS 5839-1",
				LegalReference:   "BS 5839-1:2017 Fire Detection and Alarm Systems",
				Description:      "Fire alarm system must be serviced quarterly by a competent person.",
				PlainEnglishWhy:  "Your fire alarm must be tested regularly. If it fails during a fire, you are liable.",
				PrimaryAction:    "Book service",
			},
			{
				Title:           "Fire Drill",
				ItemType:        model.ItemBestPractice,
				FrequencyType:   model.FrequencyAnnual,
				RegulatoryRef:   "RRFSO Art.21",
				LegalReference:  "Regulatory Reform (Fire Safety) Order 2005, Article 21",
				Description:     "Practice evacuation drill. Record date, time taken, and any issues.",
				PlainEnglishWhy: "Staff need to know what to do in a fire. A drill proves they do.",
				PrimaryAction:   "Schedule drill",
			},
		},
	},
	{
		Name: "Electrical Safety",
		Items: []baselineItem{
			{
				Title:            "Electrical Installation Condition Report (EICR)",
				ItemType:         model.ItemLegal,
				FrequencyType:    model.FrequencyFiveYear,
				EvidenceRequired: true,
				RegulatoryRef:    "EAWR Reg.4",
				LegalReference:   "Electricity at Work Regulations 1989, Regulation 4; BS 7671",
				Description:      "Fixed wiring inspection and testing by a qualified electrician. Required every 5 years for commercial premises.",
				PlainEnglishWhy:  "Your building wiring must be safe. An EICR proves it is. Required every 5 years.",
				PrimaryAction:    "Book inspection",
			},
			{
				Title:            "PAT Testing",
				ItemType:         model.ItemBestPractice,
				FrequencyType:    model.FrequencyAnnual,
				EvidenceRequired: true,
				RegulatoryRef:    "EAWR Reg.4",
				LegalReference:   "Electricity at Work Regulations 1989 (best practice, not explicitly mandated)",
				Description:      "Portable Appliance Testing. Not a legal requirement but strongly recommended by HSE.",
				PlainEnglishWhy:  "If a faulty appliance injures someone and you have not tested it, you could be liable.",
				PrimaryAction:    "Book testing",
			},
		},
	},
	{
		Name: "Insurance & Legal",
		Items: []baselineItem{
			{
				Title:            "Employers' Liability Insurance",
				ItemType:         model.ItemLegal,
				FrequencyType:    model.FrequencyAnnual,
				EvidenceRequired: true,
				RegulatoryRef:    "ELCIA 1969",
				LegalReference:   "Employers' Liability (Compulsory Insurance) Act 1969",
				Description:      "Must hold at least £5 million EL insurance. Certificate must be displayed or accessible.",
				PlainEnglishWhy:  "Required by law if you employ anyone. Without it you can be fined £2,500 per day.",
				PrimaryAction:    "Upload certificate",
			},
			{
				Title:            "Public Liability Insurance",
				ItemType:         model.ItemBestPractice,
				FrequencyType:    model.FrequencyAnnual,
				EvidenceRequired: true,
				LegalReference:   "Not legally required but essential for client-facing businesses",
				Description:      "Public liability insurance covering injury to clients and visitors.",
				PlainEnglishWhy:  "If a customer is injured on your premises and you are not insured, you pay out of pocket.",
				PrimaryAction:    "Upload certificate",
			},
		},
	},
	{
		Name: "First Aid & Welfare",
		Items: []baselineItem{
			{
				Title:           "First Aid Provision Review",
				ItemType:        model.ItemLegal,
				FrequencyType:   model.FrequencyAnnual,
				RegulatoryRef:   "HSWA s.2; FAR 1981",
				LegalReference:  "Health and Safety (First-Aid) Regulations 1981",
				Description:     "Review first aid needs assessment, check kit contents, and ensure appointed person is current.",
				PlainEnglishWhy: "You must have first aid available. If someone is hurt and you have nothing, that is a problem.",
				PrimaryAction:   "Review now",
			},
			{
				Title:           "First Aid Kit Check",
				ItemType:        model.ItemBestPractice,
				FrequencyType:   model.FrequencyMonthly,
				RegulatoryRef:   "FAR 1981",
				LegalReference:  "Health and Safety (First-Aid) Regulations 1981",
				Description:     "Monthly check of first aid kit contents. Replace used or expired items.",
				PlainEnglishWhy: "An empty first aid kit is useless. Check it monthly so it is ready when needed.",
				PrimaryAction:   "Mark checked",
			},
		},
	},
	{
		Name: "Risk Assessments",
		Items: []baselineItem{
			{
				Title:            "General Risk Assessment Review",
				ItemType:         model.ItemLegal,
				FrequencyType:    model.FrequencyAnnual,
				EvidenceRequired: true,
				RegulatoryRef:    "MHSWR Reg.3",
				LegalReference:   "Management of Health and Safety at Work Regulations 1999, Regulation 3",
				Description:      "Review and update all workplace risk assessments. Must be suitable and sufficient.",
				PlainEnglishWhy:  "You must identify what could hurt people in your workplace and write it down.",
				PrimaryAction:    "Create now",
			},
			{
				Title:            "COSHH Assessment Review",
				ItemType:         model.ItemLegal,
				FrequencyType:    model.FrequencyAnnual,
				EvidenceRequired: true,
				RegulatoryRef:    "COSHH Reg.6",
				LegalReference:   "Control of Substances Hazardous to Health Regulations 2002, Regulation 6",
				Description:      "Review COSHH assessments for all hazardous substances used on premises.",
				PlainEnglishWhy:  "If you use chemicals (cleaning products count), you must assess the risks.",
				PrimaryAction:    "Review now",
			},
			{
				Title:           "Display Screen Equipment Assessment",
				ItemType:        model.ItemLegal,
				FrequencyType:   model.FrequencyAnnual,
				RegulatoryRef:   "DSE Regs 1992",
				LegalReference:  "Health and Safety (Display Screen Equipment) Regulations 1992",
				Description:     "Workstation assessment for regular DSE users.",
				PlainEnglishWhy: "If staff use computers regularly, you must check their workstation is set up safely.",
				PrimaryAction:   "Assess now",
			},
		},
	},
	{
		Name: "Gas Safety",
		Items: []baselineItem{
			{
				Title:            "Gas Safety Certificate (CP12)",
				ItemType:         model.ItemLegal,
				FrequencyType:    model.FrequencyAnnual,
				EvidenceRequired: true,
				RegulatoryRef:    "GSIUR Reg.36",
				LegalReference:   "Gas Safety (Installation and Use) Regulations 1998, Regulation 36",
				Description:      "Annual gas safety check by a Gas Safe registered engineer. Required if gas appliances are present.",
				PlainEnglishWhy:  "If you have gas appliances, they must be checked yearly. A gas leak can kill.",
				PrimaryAction:    "Book engineer",
			},
		},
	},
	{
		Name: "General Compliance",
		Items: []baselineItem{
			{
				Title:           "Health & Safety Law Poster",
				ItemType:        model.ItemLegal,
				FrequencyType:   model.FrequencyAdHoc,
				RegulatoryRef:   "HSWA s.2",
				LegalReference:  "Health and Safety Information for Employees Regulations 2009",
				Description:     "HSE approved law poster must be displayed or equivalent leaflet provided to all employees.",
				PlainEnglishWhy: "You must display the HSE law poster where staff can see it. Costs about £5.",
				PrimaryAction:   "Mark done",
			},
			{
				Title:           "Accident Book (BI 510)",
				ItemType:        model.ItemLegal,
				FrequencyType:   model.FrequencyAdHoc,
				RegulatoryRef:   "SS(CA)R 1989",
				LegalReference:  "Social Security (Claims and Payments) Regulations 1979",
				Description:     "Accident book must be available for recording workplace accidents. GDPR-compliant version required.",
				PlainEnglishWhy: "You must record all workplace accidents. Buy a GDPR-compliant accident book.",
				PrimaryAction:   "Mark done",
			},
			{
				Title:            "Health & Safety Policy",
				ItemType:         model.ItemLegal,
				FrequencyType:    model.FrequencyAnnual,
				EvidenceRequired: true,
				RegulatoryRef:    "HSWA s.2(3)",
				LegalReference:   "Health and Safety at Work etc. Act 1974, Section 2(3)",
				Description:      "Written health and safety policy required if you employ 5 or more people.",
				PlainEnglishWhy:  "If you have 5+ staff you must have a written H&S policy. It shows how you keep people safe.",
				PrimaryAction:    "Create now",
			},
			{
				Title:           "Training Records",
				ItemType:        model.ItemLegal,
				FrequencyType:   model.FrequencyAdHoc,
				RegulatoryRef:   "MHSWR Reg.13",
				LegalReference:  "Management of Health and Safety at Work Regulations 1999, Regulation 13",
				Description:     "Records of all health and safety training provided to employees.",
				PlainEnglishWhy: "You must be able to prove staff have been trained. Keep records of all training.",
				PrimaryAction:   "Upload records",
			},
		},
	},
}

const defaultCategoryMaxScore = 10

type ComplianceStore interface {
	GetOrCreateCategory(ctx context.Context, tenantID uuid.UUID, name string, maxScore int) (*model.ComplianceCategory, error)
	ItemsForTenant(ctx context.Context, tenantID uuid.UUID) ([]model.ComplianceItem, error)
	CreateItem(ctx context.Context, item *model.ComplianceItem) error
	SaveItem(ctx context.Context, item *model.ComplianceItem) error
}

type Recalculator interface {
	Recalculate(ctx context.Context, tenantID uuid.UUID, trigger model.ScoreTrigger) (*model.PeaceOfMindScore, error)
}

type Seeder struct {
	store      ComplianceStore
	calculator Recalculator
	logger     *zap.Logger
	now        func() time.Time
}

func NewSeeder(store ComplianceStore, calculator Recalculator, logger *zap.Logger) *Seeder {
	return &Seeder{store: store, calculator: calculator, logger: logger, now: time.Now}
}

func (s *Seeder) WithClock(now func() time.Time) *Seeder {
	s.now = now
	return s
}

// Run seeds the baseline for one tenant and finishes with a single
// recalculation. No per-item recalc notifications are published during
// the bulk load. Returns the number of items created.
func (s *Seeder) Run(ctx context.Context, tenantID uuid.UUID) (int, error) {
	existing, err := s.store.ItemsForTenant(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("list existing items: %w", err)
	}
	byKey := make(map[string]*model.ComplianceItem, len(existing))
	for i := range existing {
		byKey[existing[i].CategoryID.String()+"/"+existing[i].Title] = &existing[i]
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	initialDue := today.AddDate(0, 0, 30)

	created := 0
	for _, cat := range ukBaseline {
		category, err := s.store.GetOrCreateCategory(ctx, tenantID, cat.Name, defaultCategoryMaxScore)
		if err != nil {
			return created, fmt.Errorf("category %q: %w", cat.Name, err)
		}

		for _, tmpl := range cat.Items {
			if found, ok := byKey[category.ID.String()+"/"+tmpl.Title]; ok {
				// Refresh the guidance text on existing items so
				// baseline wording updates reach every tenant.
				found.Description = tmpl.Description
				found.LegalReference = tmpl.LegalReference
				found.PlainEnglishWhy = tmpl.PlainEnglishWhy
				found.PrimaryAction = tmpl.PrimaryAction
				if err := s.store.SaveItem(ctx, found); err != nil {
					return created, fmt.Errorf("refresh %q: %w", tmpl.Title, err)
				}
				continue
			}

			due := initialDue
			item := &model.ComplianceItem{
				CategoryID:       category.ID,
				Title:            tmpl.Title,
				Description:      tmpl.Description,
				ItemType:         tmpl.ItemType,
				FrequencyType:    tmpl.FrequencyType,
				Status:           model.StatusDueSoon,
				DueDate:          &due,
				NextDueDate:      &due,
				ReminderDays:     30,
				Weight:           1,
				EvidenceRequired: tmpl.EvidenceRequired,
				RegulatoryRef:    tmpl.RegulatoryRef,
				LegalReference:   tmpl.LegalReference,
				PlainEnglishWhy:  tmpl.PlainEnglishWhy,
				PrimaryAction:    tmpl.PrimaryAction,
			}
			if err := s.store.CreateItem(ctx, item); err != nil {
				return created, fmt.Errorf("create %q: %w", tmpl.Title, err)
			}
			created++
		}
	}

	snapshot, err := s.calculator.Recalculate(ctx, tenantID, model.TriggerSeed)
	if err != nil {
		return created, fmt.Errorf("post-seed recalculation: %w", err)
	}

	s.logger.Info("compliance baseline seeded",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("created", created),
		zap.Int("score", snapshot.Score),
	)
	return created, nil
}
