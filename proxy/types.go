package proxy

const (
	fieldPath             = "path"      // مسیر درخواست
	fieldMethod           = "method"    // متد HTTP (بزرگ‌شده)
	fieldToken            = "callback"  // توکن تطبیق پاسخ
	fieldFormData         = "formData"  // جفت‌های (نام، مقدار) برای multipart
	fieldSuccess          = "success"   // مهر مسیر مستقیم
	fieldSupportsArgs     = "supports_args"
	fieldSupportsProgress = "supports_progress"

	// فریم پیشرفت
	fieldCallbackID = "callbackId"
	fieldLoaded     = "loaded"
	fieldTotal      = "total"
	markerUpload    = "upload"
	markerDownload  = "download"

	// هدرها به بدنه سنجاق می‌شوند (کانال جانبی)
	fieldHeaders = "_headers"
)

// مسیر endpoint راه دور؛ origin طرف تماس‌گیرنده بعد از # می‌آید
const endpointPath = "/wp-admin/rest-proxy/"
