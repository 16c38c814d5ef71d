package themes

// catalog lists every theme in cycling order.
var catalog = []Theme{
	{
		Key:         "light",
		Name:        "☀️ Classique Clair",
		Category:    "Base",
		IsDark:      false,
		Description: "Thème par défaut lumineux et propre",
		Colors: map[string]string{
			"primary":    "#2563eb",
			"success":    "#059669",
			"danger":     "#dc2626",
			"warning":    "#d97706",
			"info":       "#0891b2",
			"accent":     "#7c3aed",
			"background": "#f1f5f9",
			"surface":    "#ffffff",
			"text":       "#1e293b",
			"border":     "#e2e8f0",
			"quaternary": "#ea580c",
			"quinary":    "#0d9488",
			"senary":     "#db2777",
			"septenary":  "#4338ca",
		},
	},
	{
		Key:         "aurora",
		Name:        "🌌 Aurore Boréale",
		Category:    "Nature",
		IsDark:      false,
		Description: "Inspiré des aurores boréales avec des bleus et verts mystiques",
		Colors: map[string]string{
			"primary":    "#06b6d4",
			"success":    "#10b981",
			"danger":     "#f43f5e",
			"warning":    "#f59e0b",
			"info":       "#3b82f6",
			"accent":     "#8b5cf6",
			"background": "linear-gradient(135deg, #ecfdf5 0%, #f0fdfa 50%, #f0f9ff 100%)",
			"surface":    "rgba(255, 255, 255, 0.95)",
			"text":       "#065f46",
			"border":     "#a7f3d0",
			"quaternary": "#06b6d4",
			"quinary":    "#10b981",
			"senary":     "#f43f5e",
			"septenary":  "#8b5cf6",
		},
	},
	{
		Key:         "volcanic",
		Name:        "🌋 Volcanic",
		Category:    "Énergie",
		IsDark:      false,
		Description: "Puissance du magma avec des rouges ardents",
		Colors: map[string]string{
			"primary":    "#dc2626",
			"success":    "#059669",
			"danger":     "#ef4444",
			"warning":    "#f59e0b",
			"info":       "#0ea5e9",
			"accent":     "#f97316",
			"background": "linear-gradient(135deg, #fef2f2 0%, #fff7ed 50%, #fefbf0 100%)",
			"surface":    "rgba(255, 255, 255, 0.95)",
			"text":       "#7f1d1d",
			"border":     "#fecaca",
			"quaternary": "#eab308",
			"quinary":    "#dc2626",
			"senary":     "#c2410c",
			"septenary":  "#ea580c",
		},
	},
	{
		Key:         "midnight",
		Name:        "🌙 Midnight Ocean",
		Category:    "Sombre",
		IsDark:      true,
		Description: "Profondeurs océaniques nocturnes",
		Colors: map[string]string{
			"primary":    "#0ea5e9",
			"success":    "#10b981",
			"danger":     "#f43f5e",
			"warning":    "#fbbf24",
			"info":       "#06b6d4",
			"accent":     "#8b5cf6",
			"background": "linear-gradient(135deg, #0f172a 0%, #1e293b 50%, #334155 100%)",
			"surface":    "rgba(30, 41, 59, 0.95)",
			"text":       "#e2e8f0",
			"border":     "#334155",
			"quaternary": "#06b6d4",
			"quinary":    "#10b981",
			"senary":     "#f43f5e",
			"septenary":  "#0ea5e9",
		},
	},
	{
		Key:         "golden",
		Name:        "✨ Golden Sand",
		Category:    "Chaleur",
		IsDark:      false,
		Description: "Chaleur dorée du désert au coucher du soleil",
		Colors: map[string]string{
			"primary":    "#d97706",
			"success":    "#059669",
			"danger":     "#dc2626",
			"warning":    "#eab308",
			"info":       "#0891b2",
			"accent":     "#f59e0b",
			"background": "linear-gradient(135deg, #fffbeb 0%, #fef3c7 50%, #fde68a 100%)",
			"surface":    "rgba(255, 255, 255, 0.95)",
			"text":       "#78350f",
			"border":     "#fed7aa",
			"quaternary": "#eab308",
			"quinary":    "#d97706",
			"senary":     "#c2410c",
			"septenary":  "#ea580c",
		},
	},
	{
		Key:         "emerald",
		Name:        "💚 Emerald Forest",
		Category:    "Nature",
		IsDark:      false,
		Description: "Fraîcheur de la forêt d'émeraude",
		Colors: map[string]string{
			"primary":    "#059669",
			"success":    "#10b981",
			"danger":     "#dc2626",
			"warning":    "#d97706",
			"info":       "#0891b2",
			"accent":     "#84cc16",
			"background": "linear-gradient(135deg, #ecfdf5 0%, #d1fae5 50%, #a7f3d0 100%)",
			"surface":    "rgba(255, 255, 255, 0.95)",
			"text":       "#064e3b",
			"border":     "#a7f3d0",
			"quaternary": "#059669",
			"quinary":    "#10b981",
			"senary":     "#22c55e",
			"septenary":  "#65a30d",
		},
	},
	{
		Key:         "cosmic",
		Name:        "🪐 Cosmic Purple",
		Category:    "Espace",
		IsDark:      false,
		Description: "Mystères cosmiques violets",
		Colors: map[string]string{
			"primary":    "#8b5cf6",
			"success":    "#10b981",
			"danger":     "#f43f5e",
			"warning":    "#f59e0b",
			"info":       "#06b6d4",
			"accent":     "#a855f7",
			"background": "linear-gradient(135deg, #faf5ff 0%, #f3e8ff 50%, #e9d5ff 100%)",
			"surface":    "rgba(255, 255, 255, 0.95)",
			"text":       "#581c87",
			"border":     "#d8b4fe",
			"quaternary": "#8b5cf6",
			"quinary":    "#a855f7",
			"senary":     "#c084fc",
			"septenary":  "#7c3aed",
		},
	},
	{
		Key:         "sakura",
		Name:        "🌸 Sakura Bloom",
		Category:    "Élégance",
		IsDark:      false,
		Description: "Douceur des cerisiers en fleur",
		Colors: map[string]string{
			"primary":    "#ec4899",
			"success":    "#059669",
			"danger":     "#dc2626",
			"warning":    "#f59e0b",
			"info":       "#06b6d4",
			"accent":     "#f472b6",
			"background": "linear-gradient(135deg, #fdf2f8 0%, #fce7f3 50%, #fbcfe8 100%)",
			"surface":    "rgba(255, 255, 255, 0.95)",
			"text":       "#831843",
			"border":     "#fbcfe8",
			"quaternary": "#ec4899",
			"quinary":    "#f472b6",
			"senary":     "#f9a8d4",
			"septenary":  "#db2777",
		},
	},
	{
		Key:         "arctic",
		Name:        "❄️ Arctic Ice",
		Category:    "Fraîcheur",
		IsDark:      false,
		Description: "Pureté glaciale de l'arctique",
		Colors: map[string]string{
			"primary":    "#0ea5e9",
			"success":    "#10b981",
			"danger":     "#f43f5e",
			"warning":    "#f59e0b",
			"info":       "#06b6d4",
			"accent":     "#06b6d4",
			"background": "linear-gradient(135deg, #f0f9ff 0%, #e0f2fe 50%, #bae6fd 100%)",
			"surface":    "rgba(255, 255, 255, 0.95)",
			"text":       "#0c4a6e",
			"border":     "#bae6fd",
			"quaternary": "#0ea5e9",
			"quinary":    "#06b6d4",
			"senary":     "#0891b2",
			"septenary":  "#0284c7",
		},
	},
	{
		Key:         "royal",
		Name:        "👑 Royal Navy",
		Category:    "Prestige",
		IsDark:      false,
		Description: "Élégance royale bleu marine",
		Colors: map[string]string{
			"primary":    "#1e40af",
			"success":    "#059669",
			"danger":     "#dc2626",
			"warning":    "#f59e0b",
			"info":       "#0891b2",
			"accent":     "#3b82f6",
			"background": "linear-gradient(135deg, #eff6ff 0%, #dbeafe 50%, #bfdbfe 100%)",
			"surface":    "rgba(255, 255, 255, 0.95)",
			"text":       "#1e3a8a",
			"border":     "#bfdbfe",
			"quaternary": "#1e40af",
			"quinary":    "#2563eb",
			"senary":     "#3b82f6",
			"septenary":  "#1d4ed8",
		},
	},
	{
		Key:         "sunset",
		Name:        "🌅 Sunset Glow",
		Category:    "Chaleur",
		IsDark:      false,
		Description: "Lueur chaleureuse du couchant",
		Colors: map[string]string{
			"primary":    "#ea580c",
			"success":    "#059669",
			"danger":     "#dc2626",
			"warning":    "#f59e0b",
			"info":       "#0891b2",
			"accent":     "#f97316",
			"background": "linear-gradient(135deg, #fff7ed 0%, #ffedd5 50%, #fed7aa 100%)",
			"surface":    "rgba(255, 255, 255, 0.95)",
			"text":       "#9a3412",
			"border":     "#fed7aa",
			"quaternary": "#ea580c",
			"quinary":    "#f97316",
			"senary":     "#fb923c",
			"septenary":  "#c2410c",
		},
	},
	{
		Key:         "monochrome",
		Name:        "⚫ Monochrome",
		Category:    "Minimalisme",
		IsDark:      false,
		Description: "Élégance monochrome intemporelle",
		Colors: map[string]string{
			"primary":    "#374151",
			"success":    "#059669",
			"danger":     "#dc2626",
			"warning":    "#f59e0b",
			"info":       "#0891b2",
			"accent":     "#6b7280",
			"background": "linear-gradient(135deg, #f9fafb 0%, #f3f4f6 50%, #e5e7eb 100%)",
			"surface":    "rgba(255, 255, 255, 0.98)",
			"text":       "#111827",
			"border":     "#d1d5db",
			"quaternary": "#374151",
			"quinary":    "#4b5563",
			"senary":     "#6b7280",
			"septenary":  "#1f2937",
		},
	},
	{
		Key:         "cyber",
		Name:        "🤖 Cybernetic",
		Category:    "Futuriste",
		IsDark:      true,
		Description: "Interface cybernétique futuriste",
		Colors: map[string]string{
			"primary":    "#00f5ff",
			"success":    "#00ff88",
			"danger":     "#ff0066",
			"warning":    "#ffff00",
			"info":       "#8000ff",
			"accent":     "#ff00ff",
			"background": "linear-gradient(135deg, #0a0a0f 0%, #1a1a2e 50%, #16213e 100%)",
			"surface":    "rgba(26, 26, 46, 0.95)",
			"text":       "#00f5ff",
			"border":     "#1a1a2e",
			"quaternary": "#00f5ff",
			"quinary":    "#00ff88",
			"senary":     "#ff0066",
			"septenary":  "#8000ff",
		},
	},
}
