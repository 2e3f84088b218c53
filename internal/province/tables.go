package province

// Canonical is the authoritative list of Iraqi province names. Fuzzy
// correction only ever resolves to one of these.
var Canonical = []string{
	"بغداد",
	"البصرة",
	"نينوى",
	"أربيل",
	"النجف",
	"كربلاء",
	"كركوك",
	"الأنبار",
	"بابل",
	"ديالى",
	"ذي قار",
	"ميسان",
	"المثنى",
	"القادسية",
	"صلاح الدين",
	"السليمانية",
	"دهوك",
	"واسط",
}

// corrections maps known misspellings and variants, keyed by normalized
// (trimmed, lower-cased) form, to the canonical province name. Latin
// transliterations show up when senders type addresses on English keyboards.
var corrections = map[string]string{
	// Dropped or swapped letters
	"بغدد":     "بغداد",
	"بقداد":    "بغداد",
	"بصرة":     "البصرة",
	"البصره":   "البصرة",
	"نجف":      "النجف",
	"النجف الاشرف": "النجف",
	"كربلا":    "كربلاء",
	"كربلاء المقدسة": "كربلاء",
	"اربيل":    "أربيل",
	"اربل":     "أربيل",
	"الانبار":  "الأنبار",
	"انبار":    "الأنبار",
	"ذيقار":    "ذي قار",
	"ذى قار":   "ذي قار",
	"صلاحدين":  "صلاح الدين",
	"صلاح دين": "صلاح الدين",
	"سليمانية": "السليمانية",
	"السليمانيه": "السليمانية",
	"قادسية":   "القادسية",
	"الديوانيه": "القادسية",
	"مثنى":     "المثنى",
	"كركوج":    "كركوك",

	// Latin transliterations
	"baghdad":     "بغداد",
	"basra":       "البصرة",
	"basrah":      "البصرة",
	"mosul":       "نينوى",
	"nineveh":     "نينوى",
	"erbil":       "أربيل",
	"arbil":       "أربيل",
	"najaf":       "النجف",
	"karbala":     "كربلاء",
	"kirkuk":      "كركوك",
	"anbar":       "الأنبار",
	"babylon":     "بابل",
	"babil":       "بابل",
	"diyala":      "ديالى",
	"dhi qar":     "ذي قار",
	"maysan":      "ميسان",
	"muthanna":    "المثنى",
	"qadisiyah":   "القادسية",
	"salahaddin":  "صلاح الدين",
	"sulaymaniyah": "السليمانية",
	"duhok":       "دهوك",
	"dohuk":       "دهوك",
	"wasit":       "واسط",
}

// cities maps major city names, keyed by normalized form, to their owning
// province. Waybills frequently carry the destination city instead of the
// province.
var cities = map[string]string{
	"الموصل":    "نينوى",
	"تلعفر":     "نينوى",
	"الفلوجة":   "الأنبار",
	"الرمادي":   "الأنبار",
	"الحلة":     "بابل",
	"الناصرية":  "ذي قار",
	"العمارة":   "ميسان",
	"السماوة":   "المثنى",
	"الديوانية":  "القادسية",
	"الكوت":     "واسط",
	"بعقوبة":    "ديالى",
	"المقدادية":  "ديالى",
	"تكريت":     "صلاح الدين",
	"سامراء":    "صلاح الدين",
	"بلد":       "صلاح الدين",
	"زاخو":      "دهوك",
	"الكاظمية":   "بغداد",
	"الصدر":     "بغداد",
	"المحمودية":  "بغداد",
	"الزبير":    "البصرة",
	"ام قصر":    "البصرة",
	"الكوفة":    "النجف",
	"الهندية":    "كربلاء",
	"الحويجة":    "كركوك",
	"سنجار":     "نينوى",
	"هيت":       "الأنبار",
	"المسيب":    "بابل",
	"الشطرة":    "ذي قار",
	"سوق الشيوخ": "ذي قار",
	"علي الغربي": "ميسان",
	"الرميثة":    "المثنى",
	"عفك":       "القادسية",
	"الصويرة":    "واسط",
	"خانقين":    "ديالى",
	"رانية":     "السليمانية",
	"حلبجة":     "السليمانية",
	"العمادية":   "دهوك",
	"شقلاوة":    "أربيل",
}

// isCanonical reports whether name is exactly one of the canonical
// province names.
func isCanonical(name string) bool {
	for _, p := range Canonical {
		if p == name {
			return true
		}
	}
	return false
}
